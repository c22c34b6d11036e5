/*
Package errs defines the application error type and the business error codes.

CustomError carries a numeric business code, a client-facing message, and the
HTTP status used when the error is rendered as a response. Handlers and the
websocket layer share the same codes so a client sees one taxonomy.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
)

// CustomError is the error type used across handlers and the chat core.
type CustomError struct {
	// Code is the business error code (see error_codes.go).
	Code int

	// Message is the client-facing description.
	Message string

	// Status is the HTTP status the error maps to. Zero means 200 with a
	// non-zero business code in the envelope.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a registered code. Optional details are
// applied printf-style when the message template has placeholders. Unknown
// codes fall back to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("unregistered error code %d", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error without placeholders; ignored", "code", code)
		}
	}

	return &customErr
}
