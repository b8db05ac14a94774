package window

import "testing"

func TestObserveKeepsInsertionOrder(t *testing.T) {
	s := NewStore(5)
	var got []float64
	for i := 1; i <= 3; i++ {
		got = s.Observe("latency_zscore", float64(i))
	}
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestObserveEvictsFIFO(t *testing.T) {
	s := NewStore(3)
	var got []float64
	for i := 1; i <= 7; i++ {
		got = s.Observe("k", float64(i))
	}
	want := []float64{5, 6, 7}
	if len(got) != 3 {
		t.Fatalf("expected window bounded at 3, got %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestObserveLengthIsMinOfInsertedAndCapacity(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 4; i++ {
		s.Observe("short", float64(i))
	}
	if s.Len("short") != 4 {
		t.Fatalf("expected 4 values, got %d", s.Len("short"))
	}
	for i := 0; i < 25; i++ {
		s.Observe("long", float64(i))
	}
	if s.Len("long") != 10 {
		t.Fatalf("expected capacity-bounded length 10, got %d", s.Len("long"))
	}
}

func TestKeysAreIndependent(t *testing.T) {
	s := NewStore(4)
	s.Observe("a", 1)
	s.Observe("b", 2)
	if s.Len("a") != 1 || s.Len("b") != 1 {
		t.Fatalf("windows leaked between keys: a=%d b=%d", s.Len("a"), s.Len("b"))
	}
}

func TestEmbeddingWindowLast(t *testing.T) {
	w := NewEmbeddingWindow(3)
	if got := w.Last(10); got != nil {
		t.Fatalf("expected nil from empty window, got %v", got)
	}
	for i := 0; i < 5; i++ {
		w.Append([]float64{float64(i)})
	}
	if w.Len() != 3 {
		t.Fatalf("expected eviction to 3, got %d", w.Len())
	}
	last := w.Last(2)
	if len(last) != 2 || last[0][0] != 3 || last[1][0] != 4 {
		t.Fatalf("unexpected recent vectors: %v", last)
	}
}
