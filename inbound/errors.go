package inbound

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social/core"
)

func badRequest(message string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
	if metadata != nil {
		err = err.WithMetadata(metadata)
	}
	return err
}

func serverFault(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}

// statusFor maps err onto an HTTP status and text code. Errors without an
// error-class status are treated as bad input.
func statusFor(err error) (int, string) {
	status, textCode := http.StatusBadRequest, core.ErrorBadInput
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich == nil {
		return status, textCode
	}
	if rich.Code >= 400 && rich.Code <= 599 {
		status = rich.Code
	}
	if code := strings.TrimSpace(rich.TextCode); code != "" {
		textCode = code
	}
	return status, textCode
}
