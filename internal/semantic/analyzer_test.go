package semantic

import (
	"math"
	"testing"
)

func TestEncodeNormalizedAndDeterministic(t *testing.T) {
	a := NewAnalyzer()
	e1 := a.Encode("The model explained the algorithm in detail.")
	e2 := a.Encode("The model explained the algorithm in detail.")
	if len(e1) != Dim {
		t.Fatalf("expected %d dims, got %d", Dim, len(e1))
	}
	var norm float64
	for i := range e1 {
		if e1[i] != e2[i] {
			t.Fatalf("encoding not deterministic at dim %d", i)
		}
		norm += e1[i] * e1[i]
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Fatalf("expected unit vector, got norm %f", math.Sqrt(norm))
	}
}

func TestIdenticalTextsAreMaximallySimilar(t *testing.T) {
	a := NewAnalyzer()
	text := "Customers reported great results with the new system."
	for _, m := range []Method{MethodCosine, MethodEuclidean, MethodManhattan} {
		sim := a.Compare(text, text, m)
		if math.Abs(sim-1.0) > 1e-9 {
			t.Fatalf("method %s: expected similarity 1 for identical texts, got %f", m, sim)
		}
	}
}

func TestSimilarityOrdering(t *testing.T) {
	a := NewAnalyzer()
	base := "the quick brown fox jumps over the lazy dog"
	near := "the quick brown fox jumps over a lazy dog"
	far := "quarterly revenue projections exceeded market strategy targets!!!"
	simNear := a.Compare(base, near, MethodCosine)
	simFar := a.Compare(base, far, MethodCosine)
	if simNear <= simFar {
		t.Fatalf("expected near text more similar: near=%f far=%f", simNear, simFar)
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod(""); err != nil || m != MethodCosine {
		t.Fatalf("empty method should default to cosine, got %s (err %v)", m, err)
	}
	if m, err := ParseMethod("Manhattan"); err != nil || m != MethodManhattan {
		t.Fatalf("expected manhattan, got %s (err %v)", m, err)
	}
	if _, err := ParseMethod("hamming"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestWordOverlap(t *testing.T) {
	if got := WordOverlap("", ""); got != 1.0 {
		t.Fatalf("two empty texts should overlap fully, got %f", got)
	}
	if got := WordOverlap("alpha beta", "alpha beta"); got != 1.0 {
		t.Fatalf("identical texts should overlap fully, got %f", got)
	}
	// {a,b,c} vs {b,c,d}: 2 shared of 4 total.
	if got := WordOverlap("a b c", "b c d"); got != 0.5 {
		t.Fatalf("expected overlap 0.5, got %f", got)
	}
	if got := WordOverlap("alpha", "beta"); got != 0.0 {
		t.Fatalf("disjoint texts should not overlap, got %f", got)
	}
}

func TestAnalyzeShiftDirections(t *testing.T) {
	a := NewAnalyzer()
	short := "brief answer"
	long := "this is a considerably longer and more elaborate answer text"

	res := a.AnalyzeShift(short, long)
	if res.ShiftDirection != ShiftExpansion {
		t.Fatalf("expected expansion, got %s (ratio %f)", res.ShiftDirection, res.LengthRatio)
	}
	res = a.AnalyzeShift(long, short)
	if res.ShiftDirection != ShiftContraction {
		t.Fatalf("expected contraction, got %s (ratio %f)", res.ShiftDirection, res.LengthRatio)
	}
	res = a.AnalyzeShift(short, short)
	if res.ShiftDirection != ShiftStable {
		t.Fatalf("expected stable, got %s", res.ShiftDirection)
	}
	if math.Abs(res.SemanticShift) > 1e-9 || math.Abs(res.ShiftMagnitude) > 1e-9 {
		t.Fatalf("identical texts should show no shift: %+v", res)
	}
	if res.WordOverlap != 1.0 {
		t.Fatalf("identical texts should overlap fully, got %f", res.WordOverlap)
	}
}

func TestCategorizeSimilarity(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.95, "very_high"},
		{0.9, "very_high"},
		{0.7, "high"},
		{0.5, "medium"},
		{0.3, "low"},
		{0.1, "very_low"},
	}
	for _, c := range cases {
		if got := CategorizeSimilarity(c.score); got != c.want {
			t.Fatalf("score %f: expected %s, got %s", c.score, c.want, got)
		}
	}
}
