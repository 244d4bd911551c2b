package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"budgetsense/internal/core"
)

// ErrBodyTooLarge is returned when the request body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// PredictBody is a decoded /predict payload: one object, or a batch.
type PredictBody struct {
	Items []map[string]any
	Batch bool
}

// ParsePredictBody reads at most limit bytes of r's body. A top-level object
// yields one item; an array yields a batch in which elements that are not
// objects become nil items, left for the pipeline to reject one by one.
func ParsePredictBody(w http.ResponseWriter, r *http.Request, limit int64) (PredictBody, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return PredictBody{}, core.Malformed("", fmt.Sprintf("unsupported content type %q, expected application/json", ct))
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return PredictBody{}, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return PredictBody{}, fmt.Errorf("read request body: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return PredictBody{}, core.Malformed("", "request body is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return PredictBody{}, core.Malformed("", "invalid JSON: "+err.Error())
	}
	if dec.More() {
		return PredictBody{}, core.Malformed("", "unexpected data after the JSON value")
	}

	switch v := decoded.(type) {
	case map[string]any:
		return PredictBody{Items: []map[string]any{v}}, nil
	case []any:
		items := make([]map[string]any, len(v))
		for i, el := range v {
			items[i], _ = el.(map[string]any)
		}
		return PredictBody{Items: items, Batch: true}, nil
	default:
		return PredictBody{}, core.Malformed("", "expected a JSON object or an array of objects")
	}
}

// statusForError maps pipeline and parsing errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsMalformed(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the error text shown to clients. Internal failures are
// not echoed.
func publicMessage(err error) string {
	switch statusForError(err) {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return core.ErrModelUnavailable.Error()
	default:
		return err.Error()
	}
}
