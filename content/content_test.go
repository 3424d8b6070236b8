package content

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/go-cmp/cmp"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/dtype"
	"github.com/chazu/typedbuilder/form"
)

func ints(d dtype.DType, values ...int64) buffer.View {
	out := buffer.NewOutput("test", d, buffer.DefaultOptions())
	for _, v := range values {
		out.AppendInt64(v)
	}
	return out.View()
}

func TestListOffsetOfStrings(t *testing.T) {
	f := form.ListOffset(form.String())
	chars := buffer.NewOutput("chars", dtype.Uint8, buffer.DefaultOptions())
	chars.AppendBytes([]byte("heyyou"))

	strs := &ListOffsetArray{
		F:       f.Content.(*form.ListOffsetForm),
		Offsets: ints(dtype.Int64, 0, 3, 3, 6),
		Content: &NumpyArray{F: form.Numpy(dtype.Uint8), Data: chars.View()},
	}
	outer := &ListOffsetArray{F: f, Offsets: ints(dtype.Int64, 0, 1, 3), Content: strs}

	want := []any{[]any{"hey"}, []any{"", "you"}}
	if diff := cmp.Diff(want, ToList(outer)); diff != "" {
		t.Errorf("ToList mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAndTuple(t *testing.T) {
	x := &NumpyArray{F: form.Numpy(dtype.Int32), Data: ints(dtype.Int32, 1, 2)}
	y := &NumpyArray{F: form.Numpy(dtype.Bool), Data: ints(dtype.Bool, 1, 0)}

	rec := &RecordArray{F: form.Record([]string{"x", "y"}, []form.Form{x.F, y.F}), Length: 2, Contents: []Content{x, y}}
	want := []any{map[string]any{"x": int64(1), "y": true}, map[string]any{"x": int64(2), "y": false}}
	if diff := cmp.Diff(want, ToList(rec)); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if c, ok := rec.Field("y"); !ok || c != y {
		t.Error("Field(y) did not return the y content")
	}

	tup := &RecordArray{F: form.Tuple(x.F, y.F), Length: 1, Contents: []Content{x, y}}
	if diff := cmp.Diff([]any{[]any{int64(1), true}}, ToList(tup)); diff != "" {
		t.Errorf("tuple mismatch (-want +got):\n%s", diff)
	}
}

func TestOptions(t *testing.T) {
	leaf := &NumpyArray{F: form.Numpy(dtype.Float64), Data: ints(dtype.Float64, 1, 2, 3)}

	bm := &ByteMaskedArray{F: form.ByteMasked(leaf.F), Mask: ints(dtype.Int8, 1, 0, 1), Content: leaf}
	if diff := cmp.Diff([]any{1.0, nil, 3.0}, ToList(bm)); diff != "" {
		t.Errorf("bytemasked mismatch (-want +got):\n%s", diff)
	}

	io := &IndexedOptionArray{F: form.IndexedOption(leaf.F), Index: ints(dtype.Int64, 2, -1, 0), Content: leaf}
	if diff := cmp.Diff([]any{3.0, nil, 1.0}, ToList(io)); diff != "" {
		t.Errorf("indexedoption mismatch (-want +got):\n%s", diff)
	}

	un := &UnmaskedArray{F: form.Unmasked(leaf.F), Content: leaf}
	if un.Len() != 3 || un.Value(1) != 2.0 {
		t.Errorf("unmasked = %v", ToList(un))
	}
}

func TestBitMaskedTail(t *testing.T) {
	values := make([]int64, 10)
	leaf := &NumpyArray{F: form.Numpy(dtype.Int64), Data: ints(dtype.Int64, values...)}

	// Elements 0..7 in the full byte, 8..9 in the tail; odd elements missing.
	bm := &BitMaskedArray{
		F:       form.BitMasked(leaf.F),
		Mask:    ints(dtype.Uint8, 0x55),
		Tail:    0x01,
		Length:  10,
		Content: leaf,
	}
	for i := 0; i < 10; i++ {
		if got, want := bm.Valid(i), i%2 == 0; got != want {
			t.Errorf("Valid(%d) = %v, want %v", i, got, want)
		}
	}

	msb := *bm
	msbForm := *bm.F
	msbForm.LSBOrder = false
	msb.F = &msbForm
	msb.Mask = ints(dtype.Uint8, 0xAA)
	msb.Tail = 0x80
	for i := 0; i < 10; i++ {
		if got, want := msb.Valid(i), i%2 == 0; got != want {
			t.Errorf("msb Valid(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestUnionAndVirtual(t *testing.T) {
	a := &NumpyArray{F: form.Numpy(dtype.Int64), Data: ints(dtype.Int64, 10, 20)}
	b := &NumpyArray{F: form.Numpy(dtype.Bool), Data: ints(dtype.Bool, 1)}
	u := &UnionArray{
		F:        form.Union(a.F, b.F),
		Tags:     ints(dtype.Int8, 0, 1, 0),
		Index:    ints(dtype.Int64, 0, 0, 1),
		Contents: []Content{a, b},
	}
	if diff := cmp.Diff([]any{int64(10), true, int64(20)}, ToList(u)); diff != "" {
		t.Errorf("union mismatch (-want +got):\n%s", diff)
	}

	calls := 0
	v := &VirtualArray{F: form.Virtual(u.F), Generate: func() (Content, error) {
		calls++
		return u, nil
	}}
	if v.Len() != 3 || v.Value(1) != true || calls != 1 {
		t.Errorf("virtual len=%d calls=%d", v.Len(), calls)
	}
}

func TestEmptyArray(t *testing.T) {
	e := &EmptyArray{}
	if e.Len() != 0 || e.Form().Kind() != form.KindEmpty {
		t.Errorf("empty array len=%d kind=%v", e.Len(), e.Form().Kind())
	}
	if len(ToList(e)) != 0 {
		t.Error("ToList of empty array should be empty")
	}
}

func TestReleaseReturnsViews(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	opts := buffer.Options{Allocator: mem, Initial: 4, Resize: 2}
	view := func(d dtype.DType, values ...int64) buffer.View {
		out := buffer.NewOutput("test", d, opts)
		defer out.Release()
		for _, v := range values {
			out.AppendInt64(v)
		}
		return out.View()
	}

	leaf := &NumpyArray{F: form.Numpy(dtype.Int64), Data: view(dtype.Int64, 1, 2, 3)}
	lists := &ListOffsetArray{
		F:       form.ListOffset(leaf.F),
		Offsets: view(dtype.Int64, 0, 1, 3),
		Content: leaf,
	}
	opt := &ByteMaskedArray{F: form.ByteMasked(lists.F), Mask: view(dtype.Int8, 1, 0), Content: lists}
	v := &VirtualArray{F: form.Virtual(opt.F), Generate: func() (Content, error) { return opt, nil }}
	if v.Len() != 2 {
		t.Fatalf("Len = %d", v.Len())
	}

	Release(v)
	mem.AssertSize(t, 0)
}

func TestVirtualGeneratesOnceConcurrently(t *testing.T) {
	a := &NumpyArray{F: form.Numpy(dtype.Int64), Data: ints(dtype.Int64, 1, 2)}
	var mu sync.Mutex
	calls := 0
	v := &VirtualArray{F: form.Virtual(a.F), Generate: func() (Content, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return a, nil
	}}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Len() != 2 {
				t.Errorf("Len = %d", v.Len())
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Errorf("generated %d times", calls)
	}
}
