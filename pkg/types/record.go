// Package types defines the entity structs, the generic Record view used
// by the data-access layer, table metadata, and standard errors for the
// PharmaDB inspection-data store.
package types

// Record is a generic column-name-to-value view of a table row. The
// generic access layer operates on Records; entity DAOs convert between
// Records and typed structs at their boundary.
type Record = map[string]any

// ListOptions controls pagination and ordering for list queries.
// OrderBy is a column name optionally followed by ASC or DESC and is
// validated against the table's column allowlist before use.
type ListOptions struct {
	Limit   int
	Offset  int
	OrderBy string
}

// AsInt64 coerces a Record value to int64. Database drivers surface
// integer columns as different widths depending on the declared type.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// AsFloat64 coerces a Record value to float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsString coerces a Record value to string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool coerces a Record value to bool.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// DeriveQualified reports whether a measurement value lies within the
// inclusive [min, max] standard range. The second return is false when
// either bound is absent, in which case no qualification flag can be
// derived and the stored value is left to the caller.
func DeriveQualified(value float64, standardMin, standardMax *float64) (bool, bool) {
	if standardMin == nil || standardMax == nil {
		return false, false
	}
	return *standardMin <= value && value <= *standardMax, true
}
