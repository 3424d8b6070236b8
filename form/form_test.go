package form

import (
	"strings"
	"testing"

	"github.com/chazu/typedbuilder/dtype"
	"github.com/google/go-cmp/cmp"
)

func keysOf(root Form) []string {
	var keys []string
	Walk(root, func(f Form) error {
		keys = append(keys, f.Key())
		return nil
	})
	return keys
}

func TestAssignKeysPreOrder(t *testing.T) {
	root := ListOffset(Record(
		[]string{"x", "y"},
		[]Form{Numpy(dtype.Int64), Numpy(dtype.Float64)},
	))
	AssignKeys(root)

	want := []string{"node0", "node1", "node2", "node3"}
	if diff := cmp.Diff(want, keysOf(root)); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(root); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestAssignKeysSkipsTaken(t *testing.T) {
	leaf := Numpy(dtype.Int64)
	leaf.FormKey = "node0"
	root := ByteMasked(leaf)
	AssignKeys(root)

	if root.Key() != "node1" {
		t.Errorf("root key = %q, want node1", root.Key())
	}
	if leaf.Key() != "node0" {
		t.Errorf("leaf key = %q, want node0", leaf.Key())
	}
}

func TestValidateProblems(t *testing.T) {
	tests := []struct {
		name string
		root Form
		want string
	}{
		{
			name: "duplicate key",
			root: &RecordForm{
				Meta:     Meta{FormKey: "r"},
				Fields:   []string{"a", "b"},
				Contents: []Form{&NumpyForm{Meta: Meta{FormKey: "x"}, DType: dtype.Int64}, &NumpyForm{Meta: Meta{FormKey: "x"}, DType: dtype.Int64}},
			},
			want: `duplicate form key "x"`,
		},
		{
			name: "empty union",
			root: &UnionForm{Meta: Meta{FormKey: "u"}, Tags: dtype.Int8, Index: dtype.Int64},
			want: "no alternatives",
		},
		{
			name: "field count",
			root: &RecordForm{Meta: Meta{FormKey: "r"}, Fields: []string{"a"}},
			want: "1 fields but 0 contents",
		},
		{
			name: "negative regular",
			root: &RegularForm{Meta: Meta{FormKey: "r"}, Size: -1, Content: &EmptyForm{Meta: Meta{FormKey: "e"}}},
			want: "negative size",
		},
		{
			name: "unsigned option index",
			root: &IndexedOptionForm{Meta: Meta{FormKey: "o"}, Index: dtype.Uint32, Content: &EmptyForm{Meta: Meta{FormKey: "e"}}},
			want: "not signed",
		},
		{
			name: "masked empty",
			root: &ByteMaskedForm{Meta: Meta{FormKey: "m"}, Content: &EmptyForm{Meta: Meta{FormKey: "e"}}},
			want: "option over empty",
		},
		{
			name: "missing key",
			root: Numpy(dtype.Bool),
			want: "has no key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.root)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want substring %q", err, tt.want)
			}
		})
	}
}

func TestStringForms(t *testing.T) {
	s := String()
	if !IsString(s) || IsBytestring(s) {
		t.Errorf("String() classification wrong: params %v", s.Params)
	}
	b := Bytestring()
	if !IsBytestring(b) || IsString(b) {
		t.Errorf("Bytestring() classification wrong: params %v", b.Params)
	}
	bad := ListOffset(Numpy(dtype.Int32))
	bad.Params = Parameters{ParamArray: ArrayString}
	AssignKeys(bad)
	if err := Validate(bad); err == nil {
		t.Error("expected error for string list over int32")
	}
}

func TestRecordTuple(t *testing.T) {
	tup := Tuple(Numpy(dtype.Int64), Numpy(dtype.Bool))
	if !tup.IsTuple() {
		t.Error("Tuple should report IsTuple")
	}
	rec := NamedRecord("point", []string{"x"}, []Form{Numpy(dtype.Float64)})
	if rec.IsTuple() {
		t.Error("record should not report IsTuple")
	}
	if rec.Name() != "point" {
		t.Errorf("Name() = %q, want point", rec.Name())
	}
	if KindRecord.String() != "record" || Kind(99).String() != "Kind(99)" {
		t.Errorf("unexpected kind names %q %q", KindRecord, Kind(99))
	}
}

func TestEqualIgnoresKeys(t *testing.T) {
	rec := func() Form {
		return Record([]string{"x", "s"}, []Form{Numpy(dtype.Int64), String()})
	}
	a, b := rec(), rec()
	AssignKeys(a)
	if !Equal(a, b) {
		t.Error("keyed and unkeyed copies differ")
	}

	for name, other := range map[string]Form{
		"dtype":      Record([]string{"x", "s"}, []Form{Numpy(dtype.Float64), String()}),
		"field name": Record([]string{"x", "t"}, []Form{Numpy(dtype.Int64), String()}),
		"parameters": Record([]string{"x", "s"}, []Form{Numpy(dtype.Int64), Bytestring()}),
		"kind":       Tuple(Numpy(dtype.Int64), String()),
	} {
		if Equal(a, other) {
			t.Errorf("%s: forms compare equal", name)
		}
	}
	if Equal(Numpy(dtype.Int64), nil) || !Equal(nil, nil) {
		t.Error("nil handling wrong")
	}
}
