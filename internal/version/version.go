// Package version implements the append-only record history. Each accepted
// row is merged against the latest prior version sharing its identity key and
// appended as a brand-new stamped record; prior versions are never mutated or
// removed, which keeps a full audit trail per identity.
package version

import (
	"time"

	"importer/internal/schema"
	"importer/internal/transform"
	"importer/pkg/records"
)

// Key identifies the same real-world entity across files and runs.
type Key struct {
	IDType  string
	IDValue string
	Product string
}

// Record is one immutable version of an identity: its fixed columns, its
// descriptive bag, and the version stamp assigned at merge time.
type Record struct {
	Fixed   records.Record
	Bag     map[string]any
	Version time.Time
}

// Key derives the identity key from the record's fixed columns. Values are
// compared on their exact string form; no normalization happens here.
func (r Record) Key() Key {
	return Key{
		IDType:  transform.AsString(r.Fixed[schema.IDTypeColumn]),
		IDValue: transform.AsString(r.Fixed[schema.IDValueColumn]),
		Product: transform.AsString(r.Fixed[schema.ProductColumn]),
	}
}

// FromStructured splits a validated structured row into a Record. The bag
// column is lifted out of the fixed map; a missing or non-map bag becomes an
// empty bag (the validator has already rejected malformed ones).
func FromStructured(rec records.Record) Record {
	fixed := make(records.Record, len(rec))
	var bag map[string]any
	for k, v := range rec {
		if k == schema.BagColumn {
			if m, ok := v.(map[string]any); ok {
				bag = m
			}
			continue
		}
		fixed[k] = v
	}
	if bag == nil {
		bag = map[string]any{}
	}
	return Record{Fixed: fixed, Bag: bag}
}

// Merger computes new versions for accepted rows against a prior store
// snapshot. Now is injected so tests control version stamps; nil means
// time.Now.
type Merger struct {
	Now func() time.Time
}

// Upsert appends one new version per accepted row to prior and returns the
// updated store. prior is treated as append-ordered: when two prior versions
// of the same key carry equal stamps, the later-appended one is authoritative.
//
// Merge rule per row: the new bag is laid over the base bag: new non-nil
// values win on key collision, base entries absent from the new bag are
// preserved, and a nil-valued new entry never erases an existing attribute.
// Rows earlier in the same batch are visible as merge bases for later rows
// with the same key.
func (m Merger) Upsert(accepted []records.Record, prior []Record) []Record {
	now := m.Now
	if now == nil {
		now = time.Now
	}

	store := make([]Record, len(prior), len(prior)+len(accepted))
	copy(store, prior)

	// Index of the authoritative (latest) version per key. Scanning in
	// append order with >= comparison makes last-appended win ties.
	latest := make(map[Key]int, len(store))
	for i, rec := range store {
		k := rec.Key()
		if j, ok := latest[k]; !ok || !rec.Version.Before(store[j].Version) {
			latest[k] = i
		}
	}

	for _, row := range accepted {
		next := FromStructured(row)
		k := next.Key()

		if j, ok := latest[k]; ok {
			base := store[j]
			merged := make(map[string]any, len(base.Bag)+len(next.Bag))
			for bk, bv := range base.Bag {
				merged[bk] = bv
			}
			for nk, nv := range next.Bag {
				if nv == nil {
					continue
				}
				merged[nk] = nv
			}
			next.Bag = merged
		}

		next.Version = now()
		store = append(store, next)
		latest[k] = len(store) - 1
	}
	return store
}
