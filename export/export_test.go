package export

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/go-cmp/cmp"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
)

func ints(d dtype.DType, values ...int64) buffer.View {
	size := d.ItemSize()
	b := make([]byte, size*len(values))
	for i, v := range values {
		switch size {
		case 1:
			b[i] = byte(v)
		case 4:
			binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
		}
	}
	return buffer.NewView(d, b)
}

func floats(values ...float64) buffer.View {
	b := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return buffer.NewView(dtype.Float64, b)
}

func numpy(d dtype.DType, v buffer.View) *content.NumpyArray {
	return &content.NumpyArray{F: form.Numpy(d), Data: v}
}

func strs(offsets []int64, chars string) *content.ListOffsetArray {
	f := form.String()
	return &content.ListOffsetArray{
		F:       f,
		Offsets: ints(dtype.Int64, offsets...),
		Content: &content.NumpyArray{F: f.Content.(*form.NumpyForm), Data: buffer.NewView(dtype.Uint8, []byte(chars))},
	}
}

// people is {x: int64, name: string, score: ?float64} with three rows; the
// second score is missing.
func people() *content.RecordArray {
	x := numpy(dtype.Int64, ints(dtype.Int64, 1, 2, 3))
	name := strs([]int64{0, 1, 3, 3}, "abb")
	score := &content.ByteMaskedArray{
		F:       form.ByteMasked(form.Numpy(dtype.Float64)),
		Mask:    ints(dtype.Int8, 1, 0, 1),
		Content: numpy(dtype.Float64, floats(1.5, 0, 2.5)),
	}
	f := form.Record([]string{"x", "name", "score"}, []form.Form{x.F, name.F, score.F})
	return &content.RecordArray{F: f, Length: 3, Contents: []content.Content{x, name, score}}
}

func TestMarshalCBOR(t *testing.T) {
	data, err := MarshalCBOR(people())
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalCBOR(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []any{
		map[string]any{"x": int64(1), "name": "a", "score": 1.5},
		map[string]any{"x": int64(2), "name": "bb", "score": nil},
		map[string]any{"x": int64(3), "name": "", "score": 2.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cbor round trip (-want +got):\n%s", diff)
	}

	again, _ := MarshalCBOR(people())
	if !cmp.Equal(data, again) {
		t.Error("encoding is not deterministic")
	}
}

func TestMarshalCBORComplex(t *testing.T) {
	d := numpy(dtype.Complex128, buffer.NewView(dtype.Complex128, make([]byte, 16)))
	data, err := MarshalCBOR(d)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := UnmarshalCBOR(data)
	if diff := cmp.Diff([]any{[]any{0.0, 0.0}}, got); diff != "" {
		t.Errorf("complex (-want +got):\n%s", diff)
	}
}

func TestToProto(t *testing.T) {
	lv, err := ToProto(people())
	if err != nil {
		t.Fatal(err)
	}
	want := []any{
		map[string]any{"x": 1.0, "name": "a", "score": 1.5},
		map[string]any{"x": 2.0, "name": "bb", "score": nil},
		map[string]any{"x": 3.0, "name": "", "score": 2.5},
	}
	if diff := cmp.Diff(want, lv.AsSlice()); diff != "" {
		t.Errorf("proto (-want +got):\n%s", diff)
	}
}

func TestToArrowRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr, err := ToArrow(people(), mem)
	if err != nil {
		t.Fatal(err)
	}
	defer arr.Release()

	st, ok := arr.(*array.Struct)
	if !ok {
		t.Fatalf("got %T", arr)
	}
	if st.Len() != 3 {
		t.Errorf("len = %d", st.Len())
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, st.Field(0).(*array.Int64).Int64Values()); diff != "" {
		t.Errorf("x (-want +got):\n%s", diff)
	}
	names := st.Field(1).(*array.LargeString)
	if names.Value(0) != "a" || names.Value(1) != "bb" || names.Value(2) != "" {
		t.Errorf("names = %v", names)
	}
	scores := st.Field(2).(*array.Float64)
	if scores.NullN() != 1 || !scores.IsNull(1) || scores.Value(2) != 2.5 {
		t.Errorf("scores = %v", scores)
	}
}

func TestToArrowLeaves(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	t.Run("bool", func(t *testing.T) {
		arr, err := ToArrow(numpy(dtype.Bool, ints(dtype.Bool, 1, 0, 1)), mem)
		if err != nil {
			t.Fatal(err)
		}
		defer arr.Release()
		b := arr.(*array.Boolean)
		if !b.Value(0) || b.Value(1) || !b.Value(2) {
			t.Errorf("bools = %v", b)
		}
	})

	t.Run("indexed option", func(t *testing.T) {
		c := &content.IndexedOptionArray{
			F:       form.IndexedOption(form.Numpy(dtype.Int64)),
			Index:   ints(dtype.Int64, -1, 0, 1),
			Content: numpy(dtype.Int64, ints(dtype.Int64, 7, 8)),
		}
		arr, err := ToArrow(c, mem)
		if err != nil {
			t.Fatal(err)
		}
		defer arr.Release()
		a := arr.(*array.Int64)
		if !a.IsNull(0) || a.Value(1) != 7 || a.Value(2) != 8 {
			t.Errorf("gathered = %v", a)
		}
	})

	t.Run("list", func(t *testing.T) {
		c := &content.ListOffsetArray{
			F:       &form.ListOffsetForm{Offsets: dtype.Int32, Content: form.Numpy(dtype.Int64)},
			Offsets: ints(dtype.Int32, 0, 2, 2, 3),
			Content: numpy(dtype.Int64, ints(dtype.Int64, 1, 2, 3)),
		}
		arr, err := ToArrow(c, mem)
		if err != nil {
			t.Fatal(err)
		}
		defer arr.Release()
		l := arr.(*array.List)
		if diff := cmp.Diff([]int32{0, 2, 2, 3}, l.Offsets()); diff != "" {
			t.Errorf("offsets (-want +got):\n%s", diff)
		}
	})

	t.Run("tuple", func(t *testing.T) {
		x := numpy(dtype.Int64, ints(dtype.Int64, 1))
		c := &content.RecordArray{F: form.Tuple(x.F), Length: 1, Contents: []content.Content{x}}
		if _, err := ToArrow(c, mem); !errors.Is(err, ErrUnsupported) {
			t.Errorf("err = %v, want ErrUnsupported", err)
		}
	})
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteTableRecord(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	c := people()
	want := []Column{{"x", "BIGINT"}, {"name", "TEXT"}, {"score", "DOUBLE"}}
	if diff := cmp.Diff(want, Columns(c)); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if err := WriteTable(ctx, db, "people", c); err != nil {
		t.Fatal(err)
	}

	rows, err := db.QueryContext(ctx, `SELECT x, name, score FROM people ORDER BY x`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	type row struct {
		X     int64
		Name  string
		Score sql.NullFloat64
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.X, &r.Name, &r.Score); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	wantRows := []row{
		{1, "a", sql.NullFloat64{Float64: 1.5, Valid: true}},
		{2, "bb", sql.NullFloat64{}},
		{3, "", sql.NullFloat64{Float64: 2.5, Valid: true}},
	}
	if diff := cmp.Diff(wantRows, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}

	if err := WriteTable(ctx, db, "people", c); err == nil {
		t.Error("writing an existing table succeeded")
	}
}

func TestWriteTableNested(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	c := &content.ListOffsetArray{
		F:       form.ListOffset(form.Numpy(dtype.Int64)),
		Offsets: ints(dtype.Int64, 0, 2, 2),
		Content: numpy(dtype.Int64, ints(dtype.Int64, 1, 2)),
	}
	if err := WriteTable(ctx, db, "lists", c); err != nil {
		t.Fatal(err)
	}
	var got []string
	rows, err := db.QueryContext(ctx, `SELECT value FROM lists ORDER BY rowid`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatal(err)
		}
		got = append(got, s)
	}
	if diff := cmp.Diff([]string{"[1,2]", "[]"}, got); diff != "" {
		t.Errorf("json column (-want +got):\n%s", diff)
	}
}
