package drift

import (
	"math"
	"strings"
	"testing"

	"github.com/driftguardstack/driftguard-engine/internal/models"
)

func TestEncodeIsDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder()
	a := e.Encode("the quick brown fox")
	b := e.Encode("the quick brown fox")
	if len(a) != Dim {
		t.Fatalf("expected %d dimensions, got %d", Dim, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encoding not deterministic at dim %d", i)
		}
	}
	var norm float64
	for _, v := range a {
		norm += v * v
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Fatalf("expected unit vector, got norm %f", math.Sqrt(norm))
	}
	if sim := e.Similarity(a, b); math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("self-similarity should be 1, got %f", sim)
	}
}

func TestIdenticalTextHasZeroDrift(t *testing.T) {
	e := NewEmbedder()
	text := "The model responded with a detailed explanation."
	s := NewScorer([][]float64{e.Encode(text)}, 0.8, 100)
	rep := s.Score(text)
	if math.Abs(rep.Score) > 1e-9 {
		t.Fatalf("expected drift score 0 for identical text, got %f", rep.Score)
	}
	if rep.Detected {
		t.Fatalf("identical text must not be flagged as drift")
	}
	if math.Abs(rep.BaselineSimilarity-1.0) > 1e-9 {
		t.Fatalf("expected baseline similarity 1, got %f", rep.BaselineSimilarity)
	}
	if rep.Severity != models.SeverityMinimal {
		t.Fatalf("expected minimal severity, got %s", rep.Severity)
	}
}

func TestEmptyBaselineScoresZero(t *testing.T) {
	s := NewScorer(nil, 0.8, 100)
	rep := s.Score("anything at all")
	if rep.Score != 0 || rep.Detected {
		t.Fatalf("empty baseline must yield zero drift: %+v", rep)
	}
}

func TestRecentSimilarityFirstSampleIsOne(t *testing.T) {
	s := NewScorer(nil, 0.8, 100)
	rep := s.Score("first sample")
	if rep.RecentSimilarity != 1.0 {
		t.Fatalf("expected recent similarity 1.0 with empty window, got %f", rep.RecentSimilarity)
	}
	// The second identical sample compares only against the first.
	rep = s.Score("first sample")
	if math.Abs(rep.RecentSimilarity-1.0) > 1e-9 {
		t.Fatalf("expected recent similarity 1.0 for repeated text, got %f", rep.RecentSimilarity)
	}
}

func TestDriftDetectionThreshold(t *testing.T) {
	e := NewEmbedder()
	s := NewScorer([][]float64{e.Encode("baseline text")}, 0.95, 100)
	rep := s.Score("completely different output with other words")
	if !rep.Detected {
		t.Fatalf("expected drift detection for unrelated text, score %f", rep.Score)
	}
	if rep.Score <= 1.0-0.95 {
		t.Fatalf("detected drift must exceed 1-threshold, got %f", rep.Score)
	}
}

func TestSeverityBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  models.Severity
	}{
		{0.0, models.SeverityMinimal},
		{0.09, models.SeverityMinimal},
		{0.1, models.SeverityLow},
		{0.3, models.SeverityMedium},
		{0.5, models.SeverityHigh},
		{0.7, models.SeverityCritical},
		{0.99, models.SeverityCritical},
	}
	for _, c := range cases {
		if got := SeverityFor(c.score); got != c.want {
			t.Fatalf("score %f: expected %s, got %s", c.score, c.want, got)
		}
	}
}

func TestParseBaselineEmbeddings(t *testing.T) {
	csvData := `model_id,text,embedding
gpt-4,,"[0.6, 0.8]"
claude-3,hello world,
`
	vecs, err := ParseBaselineEmbeddings(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 0.6 || vecs[0][1] != 0.8 {
		t.Fatalf("literal embedding misparsed: %v", vecs[0])
	}
	if len(vecs[1]) != Dim {
		t.Fatalf("text row should encode to %d dims, got %d", Dim, len(vecs[1]))
	}
}

func TestParseBaselineEmbeddingsBadVector(t *testing.T) {
	csvData := "embedding\n\"[0.1, oops]\"\n"
	if _, err := ParseBaselineEmbeddings(strings.NewReader(csvData)); err == nil {
		t.Fatalf("expected parse error for malformed vector")
	}
}

func TestMismatchedDimensionsScoreZero(t *testing.T) {
	e := NewEmbedder()
	if sim := e.Similarity([]float64{1, 0}, e.Encode("x")); sim != 0 {
		t.Fatalf("expected 0 similarity for mismatched dims, got %f", sim)
	}
}
