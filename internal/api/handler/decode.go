package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/airsense/airsense/internal/api/models"
	"github.com/airsense/airsense/internal/api/response"
)

// Request body limits.
const (
	DefaultMaxBodyBytes  = 1 << 20
	DefaultMaxBatchBytes = 16 << 20
)

// decodeJSON reads one JSON value from the body into v. On failure it writes
// the problem response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &tooLarge):
			response.PayloadTooLarge(w, r, "request body too large")
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is empty", nil)
		case errors.As(err, &typeErr):
			response.BadRequest(w, r, "request body has the wrong shape", []models.FieldError{{
				Field:   typeErr.Field,
				Message: "must be " + typeErr.Type.String(),
				Code:    models.CodeInvalid,
			}})
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			response.BadRequest(w, r, "request body is not valid JSON", nil)
		default:
			response.BadRequest(w, r, err.Error(), nil)
		}
		return false
	}

	if dec.More() {
		response.BadRequest(w, r, "request body must contain a single JSON value", nil)
		return false
	}
	return true
}
