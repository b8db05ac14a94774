package drift

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/driftguardstack/driftguard-engine/internal/models"
	"github.com/driftguardstack/driftguard-engine/internal/window"
)

// DefaultThreshold is the similarity threshold below which drift is flagged.
const DefaultThreshold = 0.8

// recentLookback bounds how many trailing samples feed the recent-similarity
// signal, independent of the window capacity.
const recentLookback = 10

// Scorer holds the static baseline embedding set and the per-session window
// of recent embeddings.
type Scorer struct {
	embedder  *Embedder
	baselines [][]float64
	recent    *window.EmbeddingWindow
	threshold float64
}

// NewScorer creates a scorer. threshold is the similarity cutoff in (0, 1];
// windowSize bounds the recent-sample window.
func NewScorer(baselines [][]float64, threshold float64, windowSize int) *Scorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Scorer{
		embedder:  NewEmbedder(),
		baselines: baselines,
		recent:    window.NewEmbeddingWindow(windowSize),
		threshold: threshold,
	}
}

// Score evaluates one text sample. Drift is 1 minus the best cosine
// similarity against the baseline set (0 with no baselines). Recent
// similarity is the mean similarity against the trailing samples seen so
// far, 1.0 for the first sample; the current embedding joins the window
// afterwards, so a sample is never compared with itself.
func (s *Scorer) Score(text string) models.DriftReport {
	emb := s.embedder.Encode(text)

	score := 0.0
	if len(s.baselines) > 0 {
		best := s.embedder.Similarity(emb, s.baselines[0])
		for _, b := range s.baselines[1:] {
			if sim := s.embedder.Similarity(emb, b); sim > best {
				best = sim
			}
		}
		score = 1.0 - best
	}

	recentSim := 1.0
	if last := s.recent.Last(recentLookback); len(last) > 0 {
		sims := make([]float64, len(last))
		for i, prev := range last {
			sims[i] = s.embedder.Similarity(emb, prev)
		}
		recentSim = stat.Mean(sims, nil)
	}
	s.recent.Append(emb)

	return models.DriftReport{
		Score:              score,
		Detected:           score > (1.0 - s.threshold),
		BaselineSimilarity: 1.0 - score,
		RecentSimilarity:   recentSim,
		Severity:           SeverityFor(score),
	}
}

// SeverityFor buckets a drift score into an ordinal severity.
func SeverityFor(score float64) models.Severity {
	switch {
	case score < 0.1:
		return models.SeverityMinimal
	case score < 0.3:
		return models.SeverityLow
	case score < 0.5:
		return models.SeverityMedium
	case score < 0.7:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

// LoadBaselineEmbeddings reads baseline vectors from a CSV file. Rows may
// carry a literal embedding column ("[0.1, 0.2, ...]") or a text column that
// gets encoded on load. A missing file is the caller's warning to log.
func LoadBaselineEmbeddings(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseBaselineEmbeddings(f)
}

// ParseBaselineEmbeddings parses baseline CSV content into embedding
// vectors.
func ParseBaselineEmbeddings(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse baseline csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	embCol, textCol := -1, -1
	for i, col := range rows[0] {
		switch col {
		case "embedding":
			embCol = i
		case "text":
			textCol = i
		}
	}

	embedder := NewEmbedder()
	var out [][]float64
	for _, row := range rows[1:] {
		switch {
		case embCol >= 0 && embCol < len(row) && row[embCol] != "":
			vec, err := parseVector(row[embCol])
			if err != nil {
				return out, err
			}
			out = append(out, vec)
		case textCol >= 0 && textCol < len(row) && row[textCol] != "":
			out = append(out, embedder.Encode(row[textCol]))
		}
	}
	return out, nil
}

func parseVector(s string) ([]float64, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	parts := strings.Split(s, ",")
	vec := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse embedding component %q: %w", p, err)
		}
		vec = append(vec, v)
	}
	return vec, nil
}
