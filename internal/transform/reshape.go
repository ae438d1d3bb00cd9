package transform

import (
	"math"

	"importer/internal/schema"
	"importer/pkg/records"
)

// Reshape splits each normalized record into the fixed columns plus one
// synthesized bag column. The result is a new slice of new records; input is
// untouched.
//
// Rules, in order:
//   - a nil product value defaults to schema.ProductAll;
//   - fixed columns present in the record stay top-level (the bag column
//     itself is never treated as a source column);
//   - every remaining column that is declared in the descriptive schema goes
//     into the bag; undeclared columns are dropped: schema enforcement, not
//     data loss;
//   - bag entries whose value is nil, an empty string, or NaN are stripped so
//     the bag carries only present, meaningful values.
//
// Reshape has no failure path.
func Reshape(in []records.Record, fixed *schema.Schema, descriptive *schema.Schema) []records.Record {
	out := make([]records.Record, len(in))
	for i, rec := range in {
		structured := make(records.Record, fixed.Len()+1)
		bag := make(map[string]any)

		for col, v := range rec {
			if col == schema.BagColumn {
				continue
			}
			if col == schema.ProductColumn && v == nil {
				v = schema.ProductAll
			}
			if fixed.Has(col) {
				structured[col] = v
				continue
			}
			if !descriptive.Has(col) {
				continue
			}
			if emptySignal(v) {
				continue
			}
			bag[col] = v
		}

		structured[schema.BagColumn] = bag
		out[i] = structured
	}
	return out
}

// emptySignal reports whether v carries no information: nil, empty string,
// or NaN.
func emptySignal(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	}
	return false
}
