package engine

import (
	"slices"
	"testing"
)

func TestRingPushWithinCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing[int](4)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}

	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	if r.Cap() != 4 {
		t.Errorf("Cap = %d, want 4", r.Cap())
	}
	if got := r.Items(); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("Items = %v", got)
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	r := NewRing[int](3)
	for i := 1; i <= 7; i++ {
		r.Push(i)
	}

	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
	if got := r.Items(); !slices.Equal(got, []int{5, 6, 7}) {
		t.Errorf("Items = %v, want [5 6 7]", got)
	}
}

func TestRingLast(t *testing.T) {
	t.Parallel()

	r := NewRing[string](5)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{-1, nil},
		{2, []string{"c", "d"}},
		{4, []string{"a", "b", "c", "d"}},
		{10, []string{"a", "b", "c", "d"}},
	}
	for _, tc := range tests {
		if got := r.Last(tc.n); !slices.Equal(got, tc.want) {
			t.Errorf("Last(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestRingItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	r := NewRing[int](3)
	r.Push(1)

	items := r.Items()
	items[0] = 99

	if got := r.Items()[0]; got != 1 {
		t.Errorf("internal entry mutated through copy: %d", got)
	}
}

func TestRingNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)

	if r.Cap() != 1 {
		t.Errorf("Cap = %d, want 1", r.Cap())
	}
	if got := r.Items(); !slices.Equal(got, []int{2}) {
		t.Errorf("Items = %v, want [2]", got)
	}
}
