package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration        = "SOCIAL_CONFIGURATION"
	ErrorValidation           = "SOCIAL_VALIDATION"
	ErrorProvider             = "SOCIAL_PROVIDER_ERROR"
	ErrorPlatformMismatch     = "SOCIAL_PLATFORM_MISMATCH"
	ErrorCredentialsMissing   = "SOCIAL_CREDENTIALS_MISSING"
	ErrorCrypto               = "SOCIAL_CRYPTO"
	ErrorNotAuthenticated     = "SOCIAL_NOT_AUTHENTICATED"
	ErrorConnectionNotFound   = "SOCIAL_CONNECTION_NOT_FOUND"
	ErrorConnectionRequired   = "SOCIAL_CONNECTION_REQUIRED"
	ErrorUnsupportedOperation = "SOCIAL_UNSUPPORTED_OPERATION"
	ErrorUnknownPlatform      = "SOCIAL_UNKNOWN_PLATFORM"
	ErrorOAuthStateInvalid    = "SOCIAL_OAUTH_STATE_INVALID"
	ErrorRateLimited          = "SOCIAL_RATE_LIMITED"
	ErrorBadInput             = "SOCIAL_BAD_INPUT"
	ErrorInternal             = "SOCIAL_INTERNAL_ERROR"
)

// ConfigurationError reports missing client credentials or bot settings.
func ConfigurationError(platform Platform, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration).
		WithMetadata(map[string]any{"platform": string(platform)})
}

// ValidationError reports content rejected before any network call.
func ValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidation).
		WithSeverity(goerrors.SeverityError)
}

// ProviderError wraps a failed platform call. The message is the one the
// platform returned when it could be extracted.
func ProviderError(platform Platform, statusCode int, message string, cause error) *goerrors.Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("%s request failed", platform)
	}
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, goerrors.CategoryExternal, message)
	} else {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	metadata := map[string]any{"platform": string(platform)}
	if statusCode > 0 {
		metadata["status_code"] = statusCode
	}
	return err.
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorProvider).
		WithMetadata(metadata)
}

func PlatformMismatchError(expected Platform, actual Platform) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("connection platform mismatch: expected %s, got %s", expected, actual),
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorPlatformMismatch).
		WithMetadata(map[string]any{
			"platform":        string(expected),
			"actual_platform": string(actual),
		})
}

func CredentialsMissingError(platform Platform, field string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("%s connection is missing %s", platform, field),
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCredentialsMissing).
		WithMetadata(map[string]any{
			"platform": string(platform),
			"field":    field,
		})
}

// CryptoError means stored secret material is unusable and the owner has to
// reauthenticate.
func CryptoError(cause error) *goerrors.Error {
	message := "stored credentials could not be decrypted"
	if cause == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ErrorCrypto)
	}
	return goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCrypto)
}

func NotAuthenticatedError() *goerrors.Error {
	return goerrors.New("no authenticated owner for oauth callback", goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorNotAuthenticated)
}

func ConnectionNotFoundError(owner OwnerRef, platform Platform) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("no active connection for %s", platform),
		goerrors.CategoryNotFound,
	).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorConnectionNotFound).
		WithMetadata(map[string]any{
			"platform":   string(platform),
			"owner_type": owner.Type,
			"owner_id":   owner.ID,
		})
}

func ConnectionRequiredError(platform Platform) *goerrors.Error {
	return goerrors.New("OAuth connection required", goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorConnectionRequired).
		WithMetadata(map[string]any{"platform": string(platform)})
}

func UnsupportedOperationError(platform Platform, operation string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("%s does not support %s", platform, operation),
		goerrors.CategoryOperation,
	).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(ErrorUnsupportedOperation).
		WithMetadata(map[string]any{
			"platform":  string(platform),
			"operation": operation,
		})
}

// InvalidMessageError rejects a command or query message before it reaches
// the service. A non-nil cause is wrapped under field.
func InvalidMessageError(field string, message string, cause error) *goerrors.Error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, goerrors.CategoryValidation, field+" is invalid")
	} else {
		err = goerrors.NewValidation("invalid message", goerrors.FieldError{Field: field, Message: message})
	}
	return err.WithCode(http.StatusBadRequest).WithTextCode(ErrorBadInput)
}

// MissingDependencyError reports a handler built without its service.
func MissingDependencyError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func UnknownPlatformError(raw string) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("unsupported platform %q", raw),
		goerrors.CategoryNotFound,
	).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorUnknownPlatform)
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == textCode
}

func IsProviderError(err error) bool {
	return HasErrorCode(err, ErrorProvider) ||
		HasErrorCode(err, ErrorPlatformMismatch) ||
		HasErrorCode(err, ErrorCredentialsMissing)
}

func IsValidationError(err error) bool {
	return HasErrorCode(err, ErrorValidation)
}

func IsCryptoError(err error) bool {
	return HasErrorCode(err, ErrorCrypto)
}

func IsConfigurationError(err error) bool {
	return HasErrorCode(err, ErrorConfiguration)
}

func IsNotAuthenticated(err error) bool {
	return HasErrorCode(err, ErrorNotAuthenticated)
}

// ErrorMessage returns the user facing message of err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil && strings.TrimSpace(richErr.Message) != "" {
		return richErr.Message
	}
	return err.Error()
}

func socialErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrConnectionNotFound):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, ErrorConnectionNotFound)
	case errors.Is(err, ErrUnknownPlatform):
		return newSocialError(err.Error(), goerrors.CategoryNotFound, ErrorUnknownPlatform)
	case errors.Is(err, ErrInvalidOwner):
		return newSocialError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	case errors.Is(err, ErrVerifierNotFound), errors.Is(err, ErrVerifierExpired):
		return newSocialError(err.Error(), goerrors.CategoryAuth, ErrorOAuthStateInvalid)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "oauth state"):
		return newSocialError(err.Error(), goerrors.CategoryAuth, ErrorOAuthStateInvalid)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newSocialError(err.Error(), goerrors.CategoryRateLimit, ErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newSocialError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newSocialError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = socialHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSocialTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSocialTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorConnectionNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorNotAuthenticated
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorProvider
	case goerrors.CategoryOperation:
		return ErrorUnsupportedOperation
	default:
		return ErrorInternal
	}
}

func socialHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
