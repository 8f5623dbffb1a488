package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

// ParseQueryUUID reads a required uuid query parameter.
func ParseQueryUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, key+" is required").WithDetails(map[string]any{"field": key})
	}
	return parseUUID(raw, key)
}

// ParseOptionalQueryUUID returns nil when the parameter is absent.
func ParseOptionalQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := parseUUID(raw, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ParseURLParamUUID reads a uuid chi route parameter.
func ParseURLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	return parseUUID(strings.TrimSpace(chi.URLParam(r, key)), key)
}

func parseUUID(raw, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be a valid uuid").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
