// Package records defines the in-flight row representation shared by every
// pipeline stage. A Record is one table row keyed by column name; values keep
// whatever native type the parser produced (string, float64, bool, time.Time,
// nested map for the descriptive bag, or nil for an absent cell).
package records

// Record is one row of tabular data.
type Record map[string]any

// Clone returns a shallow copy of r. Nested values (such as the descriptive
// bag map) are shared; callers that mutate nested values must copy them
// explicitly.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
