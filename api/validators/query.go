package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
)

func invalidParam(msg, field string, extra ...any) *pkgerrors.Error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryInt returns def when key is absent and rejects values outside
// [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam("query parameter must be numeric", key)
	}
	if n < lo || n > hi {
		return 0, invalidParam("query parameter out of range", key, "min", lo, "max", hi)
	}
	return n, nil
}

// ParseOptionalQueryID returns nil when key is absent.
func ParseOptionalQueryID(r *http.Request, key string) (*int64, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	id, ok := positiveID(raw)
	if !ok {
		return nil, invalidParam("query parameter must be a positive id", key)
	}
	return &id, nil
}

// ParseIDParam reads a positive int64 chi URL parameter.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	id, ok := positiveID(chi.URLParam(r, name))
	if !ok {
		return 0, invalidParam("invalid path parameter", name)
	}
	return id, nil
}

func positiveID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return id, err == nil && id > 0
}
