package colorize

import (
	"testing"
)

func TestColorFor_Stable(t *testing.T) {
	t.Parallel()

	first := ColorFor("attention.pdf")
	for i := 0; i < 10; i++ {
		if got := ColorFor("attention.pdf"); got != first {
			t.Fatalf("call %d returned %v, want %v", i, got, first)
		}
	}
}

func TestAssign_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := Assign([]string{"a.pdf", "b.pdf", "c.pdf"})
	b := Assign([]string{"c.pdf", "a.pdf", "b.pdf", "a.pdf"})

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("want 3 entries each, got %d and %d", len(a), len(b))
	}
	for src, color := range a {
		if b[src] != color {
			t.Errorf("%s: color differs across orderings: %v vs %v", src, color, b[src])
		}
	}
}

func TestAssign_InPalette(t *testing.T) {
	t.Parallel()

	colors := Assign([]string{"x.pdf", "y.txt", "z.md"})
	for src, color := range colors {
		found := false
		for _, p := range palette {
			if p == color {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s assigned color %v outside the palette", src, color)
		}
	}
}

func TestSortedSources_UniqueAndOrdered(t *testing.T) {
	t.Parallel()

	got := SortedSources([]string{"b.pdf", "a.pdf", "b.pdf", "c.pdf", "a.pdf"})
	want := []string{"a.pdf", "b.pdf", "c.pdf"}
	if len(got) != len(want) {
		t.Fatalf("want %d sources, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
