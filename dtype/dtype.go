// Package dtype enumerates the primitive element types a leaf Form or an
// output buffer can hold.
package dtype

import "fmt"

// DType is a primitive element type.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Complex64
	Complex128
)

var names = [...]string{
	Invalid:    "invalid",
	Bool:       "bool",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	Uint8:      "uint8",
	Uint16:     "uint16",
	Uint32:     "uint32",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
}

var sizes = [...]int{
	Invalid:    0,
	Bool:       1,
	Int8:       1,
	Int16:      2,
	Int32:      4,
	Int64:      8,
	Uint8:      1,
	Uint16:     2,
	Uint32:     4,
	Uint64:     8,
	Float32:    4,
	Float64:    8,
	Complex64:  8,
	Complex128: 16,
}

// String returns the canonical name, as used in program text.
func (d DType) String() string {
	if int(d) < len(names) {
		return names[d]
	}
	return fmt.Sprintf("DType(%d)", d)
}

// ItemSize returns the size of one element in bytes.
func (d DType) ItemSize() int {
	if int(d) < len(sizes) {
		return sizes[d]
	}
	return 0
}

// Valid reports whether d is one of the defined element types.
func (d DType) Valid() bool {
	return d > Invalid && d <= Complex128
}

func (d DType) IsBool() bool { return d == Bool }

func (d DType) IsSigned() bool { return d >= Int8 && d <= Int64 }

func (d DType) IsUnsigned() bool { return d >= Uint8 && d <= Uint64 }

// IsInteger reports whether d is a signed or unsigned integer type.
func (d DType) IsInteger() bool { return d.IsSigned() || d.IsUnsigned() }

func (d DType) IsFloat() bool { return d == Float32 || d == Float64 }

// Fits reports whether an integer value is representable in d without
// wrapping. Non-integer types take any value.
func (d DType) Fits(v int64) bool {
	bits := uint(d.ItemSize() * 8)
	switch {
	case d.IsSigned():
		return bits == 64 || (v >= -1<<(bits-1) && v < 1<<(bits-1))
	case d.IsUnsigned():
		return v >= 0 && (bits == 64 || v < 1<<bits)
	}
	return true
}

func (d DType) IsComplex() bool { return d == Complex64 || d == Complex128 }

// Parse maps a canonical name back to its DType.
func Parse(name string) (DType, error) {
	for i, n := range names {
		if i == int(Invalid) {
			continue
		}
		if n == name {
			return DType(i), nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype %q", name)
}
