// Package transform implements the row pipeline stages: column renaming,
// reshaping into fixed columns plus a descriptive bag, and schema validation.
// Every stage is a pure function over records; input slices and maps are
// never mutated.
package transform

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	texttransform "golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"importer/pkg/records"
)

// foldTransformer strips combining marks so that "obowiązywania" and
// "obowiazywania" fold to the same key.
var foldTransformer = texttransform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldHeader(s string) string {
	folded, _, err := texttransform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Rename returns a copy of in with source column names replaced by canonical
// names per mapping. Columns absent from the mapping pass through unchanged,
// values are untouched. A header matches its mapping entry either exactly or,
// failing that, case- and diacritic-insensitively.
//
// Collisions on a canonical name resolve deterministically: an exact match
// always holds the canonical name, and among fold-only matches the
// lexicographically first header wins. A losing header passes through under
// its original name instead of overwriting the winner.
func Rename(in []records.Record, mapping map[string]string) []records.Record {
	srcs := make([]string, 0, len(mapping))
	for src := range mapping {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	folded := make(map[string]string, len(mapping))
	for _, src := range srcs {
		key := foldHeader(src)
		if _, ok := folded[key]; !ok {
			folded[key] = mapping[src]
		}
	}

	out := make([]records.Record, len(in))
	for i, rec := range in {
		renamed := make(records.Record, len(rec))
		exact := make(map[string]bool)
		rest := make([]string, 0, len(rec))
		for col, v := range rec {
			if canonical, ok := mapping[col]; ok {
				renamed[canonical] = v
				exact[canonical] = true
				continue
			}
			rest = append(rest, col)
		}

		sort.Strings(rest)
		claimed := make(map[string]bool)
		for _, col := range rest {
			v := rec[col]
			if canonical, ok := folded[foldHeader(col)]; ok && !exact[canonical] && !claimed[canonical] {
				renamed[canonical] = v
				claimed[canonical] = true
				continue
			}
			// Collision or no mapping: pass through, unless the original
			// name itself is a canonical slot a match already claimed.
			if exact[col] || claimed[col] {
				continue
			}
			renamed[col] = v
		}
		out[i] = renamed
	}
	return out
}
