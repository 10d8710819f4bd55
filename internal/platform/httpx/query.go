package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, &FieldErrors{Fields: map[string]string{key: "expected YYYY-MM-DD"}}
	}
	return t, nil
}

// URLInt64 parses a positive integer route parameter.
func URLInt64(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, &FieldErrors{Fields: map[string]string{key: "expected positive integer"}}
	}
	return id, nil
}
