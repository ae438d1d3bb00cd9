package sqlite

import (
	"context"
	"reflect"
	"testing"
	"time"

	"importer/internal/version"
	"importer/pkg/records"
)

var testColumns = []string{"id_type", "id_value", "product", "active", "data_od", "data_do"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, closeFn, err := New(context.Background(), Config{
		DSN:     ":memory:",
		Table:   "identity_records",
		Columns: testColumns,
	})
	if err != nil {
		t.Fatalf("open sqlite :memory:: %v", err)
	}
	t.Cleanup(closeFn)
	return s
}

func rec(idType, idValue, product string, bag map[string]any, stamp time.Time) version.Record {
	return version.Record{
		Fixed: records.Record{
			"id_type": idType, "id_value": idValue, "product": product,
			"active": "tak", "data_od": "2024-01-01", "data_do": nil,
		},
		Bag:     bag,
		Version: stamp,
	}
}

func TestInsertSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stamp := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	in := []version.Record{
		rec("PESEL", "52030478900", "all", map[string]any{"taxi": "tak", "notatka": "brak"}, stamp),
		rec("VIN", "WWWZZZ3BZ4E076409", "AUTO", map[string]any{}, stamp.Add(time.Second)),
	}
	res, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Inserted != 2 || res.Conflicts != 0 {
		t.Fatalf("result = %+v", res)
	}

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(got))
	}
	for i := range in {
		if !reflect.DeepEqual(got[i].Bag, in[i].Bag) {
			t.Fatalf("record %d bag = %#v, want %#v", i, got[i].Bag, in[i].Bag)
		}
		if !got[i].Version.Equal(in[i].Version) {
			t.Fatalf("record %d version = %v, want %v", i, got[i].Version, in[i].Version)
		}
		if !reflect.DeepEqual(got[i].Fixed, in[i].Fixed) {
			t.Fatalf("record %d fixed = %#v, want %#v", i, got[i].Fixed, in[i].Fixed)
		}
	}
}

func TestInsert_DuplicateIsConflictNotError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	stamp := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

	first := rec("PESEL", "1", "all", map[string]any{"taxi": "tak"}, stamp)
	if _, err := s.Insert(ctx, []version.Record{first}); err != nil {
		t.Fatal(err)
	}

	// Same identity + version replayed, plus one genuinely new record.
	res, err := s.Insert(ctx, []version.Record{
		first,
		rec("PESEL", "1", "all", map[string]any{"taxi": "tak"}, stamp.Add(time.Second)),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if res.Conflicts != 1 || res.Inserted != 1 {
		t.Fatalf("result = %+v, want 1 conflict and 1 insert", res)
	}

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(got))
	}
}

func TestSnapshot_EmptyStore(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("snapshot = %v, want empty", got)
	}
}
