package checksum

import "testing"

func TestSum(t *testing.T) {
	a := Sum([]byte("id_type;id_value\npesel;123"))
	b := Sum([]byte("id_type;id_value\npesel;123"))
	c := Sum([]byte("id_type;id_value\npesel;124"))

	if a != b {
		t.Errorf("equal inputs produced different sums: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("distinct inputs produced the same sum: %s", a)
	}
	if len(a) != 32 {
		t.Errorf("sum length = %d, want 32 hex chars", len(a))
	}
}

func TestSum_Empty(t *testing.T) {
	if Sum(nil) != Sum([]byte{}) {
		t.Error("nil and empty slices should hash identically")
	}
}
