package dtype

import "testing"

func TestParseRoundTrip(t *testing.T) {
	for d := Bool; d <= Complex128; d++ {
		got, err := Parse(d.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", d.String(), err)
		}
		if got != d {
			t.Errorf("Parse(%q) = %v, want %v", d.String(), got, d)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("int128"); err == nil {
		t.Error("expected error for unknown dtype")
	}
	if _, err := Parse("invalid"); err == nil {
		t.Error("expected error for the invalid placeholder name")
	}
}

func TestItemSizeAndClass(t *testing.T) {
	tests := []struct {
		d       DType
		size    int
		integer bool
		float   bool
		complex bool
	}{
		{Bool, 1, false, false, false},
		{Int16, 2, true, false, false},
		{Uint32, 4, true, false, false},
		{Float64, 8, false, true, false},
		{Complex128, 16, false, false, true},
	}
	for _, tt := range tests {
		if tt.d.ItemSize() != tt.size {
			t.Errorf("%v.ItemSize() = %d, want %d", tt.d, tt.d.ItemSize(), tt.size)
		}
		if tt.d.IsInteger() != tt.integer {
			t.Errorf("%v.IsInteger() = %v", tt.d, tt.d.IsInteger())
		}
		if tt.d.IsFloat() != tt.float {
			t.Errorf("%v.IsFloat() = %v", tt.d, tt.d.IsFloat())
		}
		if tt.d.IsComplex() != tt.complex {
			t.Errorf("%v.IsComplex() = %v", tt.d, tt.d.IsComplex())
		}
	}
	if Invalid.Valid() {
		t.Error("Invalid should not be valid")
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		d    DType
		v    int64
		want bool
	}{
		{Int8, 127, true},
		{Int8, 128, false},
		{Int8, -128, true},
		{Int8, -129, false},
		{Uint8, 255, true},
		{Uint8, 300, false},
		{Uint8, -1, false},
		{Int32, 1 << 31, false},
		{Uint32, 1<<32 - 1, true},
		{Int64, -1 << 63, true},
		{Uint64, -1, false},
		{Float32, 1 << 62, true},
	}
	for _, tt := range tests {
		if got := tt.d.Fits(tt.v); got != tt.want {
			t.Errorf("%v.Fits(%d) = %v, want %v", tt.d, tt.v, got, tt.want)
		}
	}
}
