package window

import "testing"

func TestPushEvictsOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	if r.Len() != 3 {
		t.Fatalf("expected len 3, got %d", r.Len())
	}
	got := r.Items()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Items() = %v, want %v", got, want)
		}
	}
	newest := r.Newest()
	if newest[0] != 5 || newest[2] != 3 {
		t.Fatalf("Newest() = %v, want [5 4 3]", newest)
	}
}

func TestBoundHoldsForLongSequences(t *testing.T) {
	r := New[int](20)
	for i := 0; i < 1000; i++ {
		r.Push(i)
		if r.Len() > 20 {
			t.Fatalf("window grew past capacity: %d", r.Len())
		}
		last, ok := r.Last()
		if !ok || last != i {
			t.Fatalf("expected last=%d, got %d (ok=%v)", i, last, ok)
		}
	}
	items := r.Items()
	if items[len(items)-1] != 999 || items[0] != 980 {
		t.Fatalf("unexpected window contents: first=%d last=%d", items[0], items[len(items)-1])
	}
}

func TestEmptyAndReset(t *testing.T) {
	r := New[string](2)
	if _, ok := r.Last(); ok {
		t.Fatalf("expected empty ring to report no last element")
	}
	if len(r.Items()) != 0 || len(r.Newest()) != 0 {
		t.Fatalf("expected empty copies")
	}
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("expected reset ring to be empty, got %d", r.Len())
	}
	r.Push("d")
	if got := r.Items(); len(got) != 1 || got[0] != "d" {
		t.Fatalf("unexpected items after reset: %v", got)
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	items := r.Items()
	items[0] = 42
	if last, _ := r.Last(); last != 1 {
		t.Fatalf("mutating Items() leaked into ring: %d", last)
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero capacity")
		}
	}()
	_ = New[int](0)
}
