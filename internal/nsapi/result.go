package nsapi

import (
	"fmt"
	"strconv"

	"rosterwatch/pkg/domain"
	"rosterwatch/pkg/platform/sentinel"
)

// Result is one parsed response. Fields are addressed by normalized name and
// are always sequences; an absent field is reported as missing rather than
// empty.
type Result struct {
	Kind      EntityKind
	ID        domain.Identifier
	Fields    map[string][]string
	RateLimit RateLimitState
	// Throttled is set when the server demanded a Retry-After wait before
	// this result was returned.
	Throttled bool
}

// Field returns the values of name and whether the response carried it.
func (r *Result) Field(name string) ([]string, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	values, ok := r.Fields[name]
	return values, ok
}

// Empty reports whether the response carried no recognized fields.
func (r *Result) Empty() bool {
	return r == nil || len(r.Fields) == 0
}

// Identifiers returns the values of name as identifiers, or ErrNoData when
// the field is absent.
func (r *Result) Identifiers(name string) ([]domain.Identifier, error) {
	values, ok := r.Field(name)
	if !ok {
		return nil, fmt.Errorf("field %q: %w", name, sentinel.ErrNoData)
	}
	ids := make([]domain.Identifier, 0, len(values))
	for _, v := range values {
		ids = append(ids, domain.Canonicalize(v))
	}
	return ids, nil
}

// Int returns the first value of name parsed as an integer, or ErrNoData
// when the field is absent or unreadable.
func (r *Result) Int(name string) (int64, error) {
	values, ok := r.Field(name)
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("field %q: %w", name, sentinel.ErrNoData)
	}
	v, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, sentinel.ErrNoData)
	}
	return v, nil
}
