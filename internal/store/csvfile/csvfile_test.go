package csvfile

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"importer/internal/version"
	"importer/pkg/records"
)

var testColumns = []string{"id_type", "id_value", "product", "active", "data_od", "data_do"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "snapshot.csv"),
		Columns: testColumns,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNew_RejectsReservedAndEmpty(t *testing.T) {
	if _, err := New(Config{Path: "x.csv", Columns: []string{"id_type", "dane_opisowe"}}); err == nil {
		t.Fatal("want error for reserved bag column")
	}
	if _, err := New(Config{Path: "x.csv", Columns: []string{"version"}}); err == nil {
		t.Fatal("want error for reserved version column")
	}
	if _, err := New(Config{Path: "", Columns: testColumns}); err == nil {
		t.Fatal("want error for empty path")
	}
	if _, err := New(Config{Path: "x.csv"}); err == nil {
		t.Fatal("want error for no columns")
	}
}

func TestSnapshot_MissingFileIsEmptyStore(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("snapshot = %v, want empty", got)
	}
}

func TestInsertSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	recs := []version.Record{
		{
			Fixed: records.Record{
				"id_type": "PESEL", "id_value": "52030478900", "product": "all",
				"active": "tak", "data_od": "2024-08-01", "data_do": "2025-08-01",
			},
			Bag:     map[string]any{"notatka": "brak", "ostatnia_wizyta": "2025-04-15"},
			Version: time.Date(2025, 8, 1, 12, 0, 0, 123456789, time.UTC),
		},
		{
			Fixed: records.Record{
				"id_type": "VIN", "id_value": "WWWZZZ3BZ4E076409", "product": "AUTO",
				"active": "tak", "data_od": "2024-07-01", "data_do": nil,
			},
			Bag:     map[string]any{"taxi": "tak", "czy włoski": "nie"},
			Version: time.Date(2025, 8, 1, 12, 0, 1, 0, time.UTC),
		},
	}

	res, err := s.Insert(ctx, recs)
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
	for i := range recs {
		if !reflect.DeepEqual(got[i].Bag, recs[i].Bag) {
			t.Fatalf("record %d bag = %#v, want %#v", i, got[i].Bag, recs[i].Bag)
		}
		if !got[i].Version.Equal(recs[i].Version) {
			t.Fatalf("record %d version = %v, want %v", i, got[i].Version, recs[i].Version)
		}
		if !reflect.DeepEqual(got[i].Fixed, recs[i].Fixed) {
			t.Fatalf("record %d fixed = %#v, want %#v", i, got[i].Fixed, recs[i].Fixed)
		}
	}
}

func TestInsert_AppendsAcrossRunsInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(idValue string, stamp time.Time) version.Record {
		return version.Record{
			Fixed:   records.Record{"id_type": "PESEL", "id_value": idValue, "product": "all", "active": "tak", "data_od": "2024-01-01", "data_do": "2025-01-01"},
			Bag:     map[string]any{},
			Version: stamp,
		}
	}
	t0 := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.Insert(ctx, []version.Record{mk("1", t0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, []version.Record{mk("2", t0.Add(time.Second)), mk("3", t0.Add(2*time.Second))}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, rec := range got {
		ids = append(ids, rec.Fixed["id_value"].(string))
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "3"}) {
		t.Fatalf("append order = %v", ids)
	}
}

func TestSnapshot_EmptyBagRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := version.Record{
		Fixed:   records.Record{"id_type": "NIP", "id_value": "1", "product": "all", "active": "tak", "data_od": "2024-01-01", "data_do": "2025-01-01"},
		Bag:     map[string]any{},
		Version: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.Insert(ctx, []version.Record{rec}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Bag == nil || len(got[0].Bag) != 0 {
		t.Fatalf("bag = %#v, want empty non-nil map", got[0].Bag)
	}
}
