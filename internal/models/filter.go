package models

// Condition is a single filter predicate evaluated against a task field.
// Value is optional for presence operators (is_empty / not_empty) and must
// be a list for in / not_in.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// FilterDefinition is a named set of conditions combined with AND or OR
// logic. A disabled definition filters nothing (fail-open).
type FilterDefinition struct {
	Enabled    bool        `json:"enabled"`
	Conditions []Condition `json:"conditions"`
	Logic      string      `json:"logic,omitempty"`
}

// Clone returns a copy whose conditions slice is independent of the
// original, so callers never observe a half-applied registry update.
func (d *FilterDefinition) Clone() *FilterDefinition {
	if d == nil {
		return nil
	}
	out := &FilterDefinition{
		Enabled: d.Enabled,
		Logic:   d.Logic,
	}
	out.Conditions = append(out.Conditions, d.Conditions...)
	return out
}

// FilterConfig is the persisted registry document. Its JSON shape is part
// of the external contract: {"filters": {...}, "active_filter": name}.
type FilterConfig struct {
	Filters      map[string]*FilterDefinition `json:"filters"`
	ActiveFilter string                       `json:"active_filter"`
}

// DefaultFilterName is the reserved definition the registry bootstraps and
// falls back to when the active definition is removed.
const DefaultFilterName = "default"

// FilterCreateRequest is the body of POST /api/filters/add.
type FilterCreateRequest struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Enabled    *bool       `json:"enabled,omitempty"`
	Logic      string      `json:"logic,omitempty"`
}

// FilterUpdateRequest is the body of PUT /api/filters/:name. Nil fields are
// left unchanged.
type FilterUpdateRequest struct {
	Conditions []Condition `json:"conditions,omitempty"`
	Enabled    *bool       `json:"enabled,omitempty"`
	Logic      string      `json:"logic,omitempty"`
}
