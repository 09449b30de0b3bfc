package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

var categoryTextCodes = map[goerrors.Category]string{
	goerrors.CategoryBadInput:   core.ErrorBadInput,
	goerrors.CategoryValidation: core.ErrorBadInput,
	goerrors.CategoryRateLimit:  core.ErrorRateLimited,
	goerrors.CategoryExternal:   core.ErrorProvider,
}

// newError builds a rich transport error. cause may be nil.
func newError(cause error, category goerrors.Category, code int, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if cause != nil {
		err = goerrors.Wrap(cause, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	textCode, ok := categoryTextCodes[category]
	if !ok {
		textCode = core.ErrorInternal
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// isTransient reports whether a failure is worth another attempt. Only
// external failures and plain errors from the network stack qualify.
func isTransient(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.Category == goerrors.CategoryExternal
	}
	return true
}
