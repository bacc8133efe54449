package cronexpr

import (
	"slices"
	"testing"
)

func TestExpandField(t *testing.T) {
	tests := []struct {
		field    string
		min, max int
		want     []int
	}{
		{"*/15", 0, 59, []int{0, 15, 30, 45}},
		{"1,3,5-7", 1, 12, []int{1, 3, 5, 6, 7}},
		{"5", 0, 59, []int{5}},
		{"10/20", 0, 59, []int{10, 30, 50}},
		{"0-30/10", 0, 59, []int{0, 10, 20, 30}},
		{"7,1,7", 0, 7, []int{1, 7}},
		{"1-5,3-4", 0, 6, []int{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		got := ExpandField(tt.field, tt.min, tt.max)
		if !slices.Equal(got, tt.want) {
			t.Errorf("ExpandField(%q, %d, %d) = %v, want %v", tt.field, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestExpandFieldWildcardCoversBounds(t *testing.T) {
	got := ExpandField("*", 0, 23)
	if len(got) != 24 || got[0] != 0 || got[23] != 23 {
		t.Fatalf("ExpandField(*) = %v", got)
	}
}

// Literals are not checked against the field bounds.
func TestExpandFieldOutOfRangeLiteralPassesThrough(t *testing.T) {
	got := ExpandField("75", 0, 59)
	if !slices.Equal(got, []int{75}) {
		t.Fatalf("ExpandField(75) = %v, want [75]", got)
	}
}

func TestExpandFieldReversedRangeIsEmpty(t *testing.T) {
	if got := ExpandField("9-3", 0, 23); len(got) != 0 {
		t.Fatalf("ExpandField(9-3) = %v, want empty", got)
	}
}

func TestExpandFieldSkipsGarbage(t *testing.T) {
	tests := []struct {
		field string
		want  []int
	}{
		{"abc", nil},
		{"*/0", nil},
		{"*/x", nil},
		{"a-5", nil},
		{"MON,2", []int{2}},
		{"", nil},
	}
	for _, tt := range tests {
		got := ExpandField(tt.field, 0, 6)
		if !slices.Equal(got, tt.want) {
			t.Errorf("ExpandField(%q) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestExpandFieldBoundsHugeRanges(t *testing.T) {
	got := ExpandField("0-999999999", 0, 59)
	if len(got) != maxFieldSpan+1 {
		t.Fatalf("len = %d, want %d", len(got), maxFieldSpan+1)
	}
}

func TestFields(t *testing.T) {
	if _, ok := Fields("0 9 * *"); ok {
		t.Error("four fields accepted")
	}
	f, ok := Fields("  0  9 * * 1  extra ")
	if !ok || len(f) != 5 || f[4] != "1" {
		t.Errorf("Fields = %v, %v", f, ok)
	}
}
