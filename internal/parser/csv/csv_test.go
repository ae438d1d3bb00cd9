package csv

import (
	"reflect"
	"strings"
	"testing"

	"importer/pkg/records"
)

func TestParse_HeaderAndNulls(t *testing.T) {
	in := "Typ identyfikatora,Identyfikator,Produkt\nPESEL,52030478900,\nVIN,WWWZZZ3BZ4E076409,AUTO\n"
	p := NewParser(Options{})
	got, rows, err := p.Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []records.Record{
		{"Typ identyfikatora": "PESEL", "Identyfikator": "52030478900", "Produkt": nil},
		{"Typ identyfikatora": "VIN", "Identyfikator": "WWWZZZ3BZ4E076409", "Produkt": "AUTO"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records = %#v, want %#v", got, want)
	}
	if !reflect.DeepEqual(rows, []int{2, 3}) {
		t.Fatalf("rows = %v, want [2 3]", rows)
	}
}

func TestParse_BlankLinesKeepPhysicalRows(t *testing.T) {
	// Line 3 is blank; the reader skips it but the second record must still
	// report as line 4, the line a user sees in the file.
	in := "a,b\n1,2\n\n3,4\n"
	got, rows, err := NewParser(Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if !reflect.DeepEqual(rows, []int{2, 4}) {
		t.Fatalf("rows = %v, want [2 4]", rows)
	}
}

func TestParse_StripsBOM(t *testing.T) {
	in := "\uFEFFid_type,id_value\nPESEL,1\n"
	got, _, err := NewParser(Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := got[0]["id_type"]; !ok {
		t.Fatalf("BOM not stripped: %#v", got[0])
	}
}

func TestParse_ShortRowLeavesNil(t *testing.T) {
	in := "a,b,c\n1,2\n"
	got, _, err := NewParser(Options{}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got[0]["c"] != nil {
		t.Fatalf("c = %v, want nil", got[0]["c"])
	}
}

func TestParse_CustomDelimiterAndTrim(t *testing.T) {
	in := "a;b\n x ;y\n"
	got, _, err := NewParser(Options{Comma: ';', TrimSpace: true}).Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got[0]["a"] != "x" {
		t.Fatalf("a = %q, want \"x\"", got[0]["a"])
	}
}

func TestParse_EmptyInputIsError(t *testing.T) {
	if _, _, err := NewParser(Options{}).Parse(strings.NewReader("")); err == nil {
		t.Fatal("want error for empty input")
	}
}
