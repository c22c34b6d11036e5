/*
Package req provides request binding helpers shared by the REST handlers.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
)

// MaxBodySize is the hard cap on JSON request bodies.
const MaxBodySize int64 = 1 << 20 // 1 MB

// BindJSON decodes the request body into dst. It requires an application/json
// Content-Type, rejects unknown fields, and rejects trailing content.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
