package store

import "testing"

func TestSimpleFileEmplaceAssignPop(t *testing.T) {
	f := NewSimpleFile[string]()
	a := f.Emplace("alpha")
	b := f.Emplace("beta")
	if a == None || b == None {
		t.Fatalf("emplace must never return None, got a=%d b=%d", a, b)
	}
	if f.Get(a) != "alpha" || f.Get(b) != "beta" {
		t.Fatalf("unexpected contents")
	}
	f.Assign(a, "alpha2")
	if f.Get(a) != "alpha2" {
		t.Fatalf("assign did not take effect")
	}
	f.Pop(a)
	c := f.Emplace("gamma")
	if c != a {
		t.Fatalf("expected freed slot %d to be reused, got %d", a, c)
	}
}

func TestVectorFileAppendAndShorten(t *testing.T) {
	f := NewVectorFile[int]()
	idx := f.Emplace([]int{1, 2, 3})
	f.Append(idx, []int{4, 5})
	got := f.At(idx)
	want := []int{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	f.ShortenBy(idx, 2)
	if f.Len(idx) != 3 {
		t.Fatalf("expected length 3 after shorten, got %d", f.Len(idx))
	}
}

func TestCrunchInlineThenSpill(t *testing.T) {
	vf := NewVectorFile[Idx]()
	var c Crunch
	if !c.Empty() {
		t.Fatalf("zero-value Crunch must be empty")
	}
	c.Append(vf, 7)
	if c.spilled {
		t.Fatalf("single element must stay inline")
	}
	if got := c.Items(vf); len(got) != 1 || got[0] != 7 {
		t.Fatalf("got %v", got)
	}
	c.Append(vf, 9)
	if !c.spilled {
		t.Fatalf("second element must spill to overflow")
	}
	got := c.Items(vf)
	if len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Fatalf("got %v", got)
	}
}
