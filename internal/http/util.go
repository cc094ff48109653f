package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wisefido-patient-status/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to the failure envelope. Internal causes are
// logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	e := service.AsError(err)
	if e.Kind == service.KindInternal {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	status := e.Kind.HTTPStatus()
	writeJSON(w, status, Fail(status, e.Kind.Label(), e.Message, r.URL.RequestURI(), e.Details))
}

func writeRouteError(w http.ResponseWriter, r *http.Request, status int) {
	label := http.StatusText(status)
	writeJSON(w, status, Fail(status, label, "Cannot "+r.Method+" "+r.URL.Path, r.URL.RequestURI(), nil))
}

// readBodyJSON decodes a single JSON object into out, rejecting unknown
// properties, trailing data and bodies over maxBytes. An empty body leaves out
// untouched.
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.NewValidationError([]string{fmt.Sprintf("Request body must not exceed %d bytes", maxBytes)})
		}
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		return service.NewValidationError([]string{"Request body must contain a single JSON object"})
	}
	return nil
}

// decodeError turns json decoding failures into validation details.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return service.NewValidationError([]string{typeMessage(typeErr.Field)})
	}
	if field, ok := strings.CutPrefix(err.Error(), `json: unknown field "`); ok {
		return service.NewValidationError([]string{"property " + strings.TrimSuffix(field, `"`) + " should not exist"})
	}
	return service.NewValidationError([]string{"Request body must be valid JSON"})
}

// parseBoolQuery accepts only "true" and "false"; absent means false.
func parseBoolQuery(r *http.Request, name string) (bool, error) {
	switch v := r.URL.Query().Get(name); v {
	case "", "false":
		return false, nil
	case "true":
		return true, nil
	default:
		return false, service.NewValidationError([]string{name + " must be a boolean value"})
	}
}
