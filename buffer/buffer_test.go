package buffer

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/chazu/typedbuilder/dtype"
)

func smallOptions(mem memory.Allocator) Options {
	return Options{Allocator: mem, Initial: 2, Resize: 2}
}

func TestOutputAppendConvert(t *testing.T) {
	out := NewOutput("x-data", dtype.Float64, smallOptions(nil))
	out.AppendInt64(3)
	out.AppendFloat64(2.5)
	out.AppendComplex(complex(-1, 4))

	v := out.View()
	if v.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", v.Len())
	}
	want := []float64{3, 2.5, -1}
	for i, w := range want {
		if got := v.Float64(i); got != w {
			t.Errorf("element %d = %v, want %v", i, got, w)
		}
	}
}

func TestOutputAddInt64(t *testing.T) {
	out := NewOutput("l-offsets", dtype.Int32, smallOptions(nil))
	out.AppendInt64(0)
	out.AddInt64(2)
	out.AddInt64(0)
	out.AddInt64(5)

	v := out.View()
	want := []int64{0, 2, 2, 7}
	for i, w := range want {
		if got := v.Int64(i); got != w {
			t.Errorf("offset %d = %d, want %d", i, got, w)
		}
	}
}

func TestViewSurvivesGrowth(t *testing.T) {
	out := NewOutput("n-data", dtype.Int64, smallOptions(nil))
	out.AppendInt64(1)
	out.AppendInt64(2)
	v := out.View()
	for i := 0; i < 100; i++ {
		out.AppendInt64(int64(100 + i))
	}
	if v.Len() != 2 || v.Int64(0) != 1 || v.Int64(1) != 2 {
		t.Errorf("view changed after growth: len=%d", v.Len())
	}
	if out.Len() != 102 {
		t.Errorf("out.Len() = %d, want 102", out.Len())
	}
}

func TestTruncateBelowPinIsCopyOnWrite(t *testing.T) {
	out := NewOutput("n-data", dtype.Int64, Options{Initial: 16, Resize: 2})
	for i := int64(0); i < 4; i++ {
		out.AppendInt64(i)
	}
	v := out.View()

	out.Truncate(2)
	out.AppendInt64(42)
	out.AppendInt64(43)

	for i := 0; i < 4; i++ {
		if got := v.Int64(i); got != int64(i) {
			t.Errorf("pinned element %d = %d, want %d", i, got, i)
		}
	}
	after := out.View()
	if after.Int64(2) != 42 || after.Int64(3) != 43 {
		t.Errorf("new elements = %d,%d, want 42,43", after.Int64(2), after.Int64(3))
	}
}

func TestResetAfterViewKeepsSnapshot(t *testing.T) {
	out := NewOutput("b-data", dtype.Bool, smallOptions(nil))
	out.AppendInt64(1)
	out.AppendInt64(0)
	v := out.View()
	out.Reset()
	out.AppendInt64(0)

	if !v.Bool(0) || v.Bool(1) {
		t.Errorf("snapshot modified by reset: %v %v", v.Bool(0), v.Bool(1))
	}
	if out.Len() != 1 {
		t.Errorf("Len() after reset = %d, want 1", out.Len())
	}
}

func TestAppendBytes(t *testing.T) {
	out := NewOutput("s-data", dtype.Uint8, smallOptions(nil))
	if err := out.AppendBytes([]byte("hello")); err != nil {
		t.Fatalf("AppendBytes failed: %v", err)
	}
	if got := string(out.View().Bytes()); got != "hello" {
		t.Errorf("bytes = %q, want hello", got)
	}

	wide := NewOutput("w-data", dtype.Int32, smallOptions(nil))
	if err := wide.AppendBytes([]byte("x")); err == nil {
		t.Error("expected error appending bytes to int32 buffer")
	}
}

func TestReleaseReturnsMemory(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	out := NewOutput("n-data", dtype.Int64, smallOptions(mem))
	out.AppendInt64(1)
	v := out.View()
	for i := 0; i < 10; i++ {
		out.AppendInt64(int64(i))
	}
	out.Release()
	v.Release()
	mem.AssertSize(t, 0)
}

func TestPeekDoesNotPin(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	out := NewOutput("n-data", dtype.Int64, Options{Allocator: mem, Initial: 16, Resize: 2})
	for i := int64(0); i < 4; i++ {
		out.AppendInt64(i)
	}
	p := out.Peek()
	if p.Len() != 4 || p.Int64(3) != 3 {
		t.Fatalf("peek len=%d", p.Len())
	}

	// no pin, so truncation writes in place
	out.Truncate(2)
	out.AppendInt64(42)
	if p.Int64(2) != 42 {
		t.Errorf("element 2 = %d, want 42", p.Int64(2))
	}

	out.Release()
	mem.AssertSize(t, 0)
}

func TestConcurrentViews(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	out := NewOutput("n-data", dtype.Int64, Options{Allocator: mem, Initial: 16, Resize: 2})
	for i := int64(0); i < 8; i++ {
		out.AppendInt64(i)
	}

	views := make([]View, 8)
	var wg sync.WaitGroup
	for i := range views {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				v := out.View()
				_ = out.Peek().Len()
				v.Release()
			}
			views[i] = out.View()
		}()
	}
	wg.Wait()

	out.Truncate(4)
	out.AppendInt64(99)
	for _, v := range views {
		if v.Len() != 8 || v.Int64(4) != 4 {
			t.Errorf("pinned view changed: len=%d element 4=%d", v.Len(), v.Int64(4))
		}
		v.Release()
	}
	out.Release()
	mem.AssertSize(t, 0)
}

func TestInputReadsWholeItems(t *testing.T) {
	in := NewInput()
	in.WriteInt32(7)
	in.WriteInt64(-9)
	in.WriteBytes([]byte{1, 2})

	if code, ok := in.ReadInt32(); !ok || code != 7 {
		t.Fatalf("ReadInt32 = %d,%v", code, ok)
	}
	if v, ok := in.ReadInt64(); !ok || v != -9 {
		t.Fatalf("ReadInt64 = %d,%v", v, ok)
	}
	if _, ok := in.ReadInt64(); ok {
		t.Fatal("ReadInt64 should fail with 2 bytes left")
	}
	if in.Remaining() != 2 {
		t.Errorf("failed read moved the cursor: %d remaining", in.Remaining())
	}
	if p, ok := in.ReadBytes(2); !ok || p[1] != 2 {
		t.Errorf("ReadBytes = %v,%v", p, ok)
	}
	in.Compact()
	if in.Len() != 0 {
		t.Errorf("Compact left %d bytes", in.Len())
	}
}

func TestInputRewind(t *testing.T) {
	in := NewInput()
	in.WriteInt32(1)
	mark := in.Len()
	in.ReadInt32()
	in.WriteInt32(2)
	in.WriteInt32(3)
	in.ReadInt32()

	if err := in.Rewind(mark, mark); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	if in.Remaining() != 0 || in.Len() != 4 {
		t.Errorf("after rewind len=%d remaining=%d", in.Len(), in.Remaining())
	}
	if err := in.Rewind(0, 100); err == nil {
		t.Error("expected error rewinding past the end")
	}
}
