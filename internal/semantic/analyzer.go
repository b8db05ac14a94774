// Package semantic compares two text fields (typically prompt and response)
// using a hand-rolled feature embedding: character frequencies, word shape
// statistics, and shallow lexical signals. It is deliberately cheap and
// deterministic rather than a real language model.
package semantic

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Dim is the feature-embedding dimensionality.
const Dim = 384

// Method selects the similarity metric.
type Method string

const (
	MethodCosine    Method = "cosine"
	MethodEuclidean Method = "euclidean"
	MethodManhattan Method = "manhattan"
)

// ParseMethod resolves a configured method name, defaulting to cosine.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return MethodCosine, nil
	case "euclidean":
		return MethodEuclidean, nil
	case "manhattan":
		return MethodManhattan, nil
	default:
		return "", fmt.Errorf("unknown similarity method %q", s)
	}
}

// ShiftAnalysis describes how text2 moved relative to text1.
type ShiftAnalysis struct {
	SimilarityScore float64
	SemanticShift   float64
	WordOverlap     float64
	LengthRatio     float64
	ShiftMagnitude  float64
	ShiftDirection  string
}

// Shift directions derived from the raw length ratio.
const (
	ShiftExpansion   = "expansion"
	ShiftContraction = "contraction"
	ShiftStable      = "stable"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	stripRe      = regexp.MustCompile(`[^\w\s.,!?;:]`)
)

var (
	commonWords   = []string{"the", "and", "or", "but", "in", "on", "at", "to", "for", "of"}
	positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "fantastic"}
	negativeWords = []string{"bad", "terrible", "awful", "horrible", "disappointing", "poor"}
	techWords     = []string{"algorithm", "data", "model", "system", "code", "software"}
	businessWords = []string{"revenue", "profit", "customer", "market", "strategy", "business"}
)

// Analyzer encodes texts and measures their similarity.
type Analyzer struct{}

// NewAnalyzer returns a semantic analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Encode maps text to an L2-normalized Dim-length feature vector.
func (a *Analyzer) Encode(text string) []float64 {
	text = preprocess(text)

	features := make([]float64, 0, 80)
	features = append(features, characterFeatures(text)...)
	features = append(features, wordFeatures(text)...)
	features = append(features, lexicalFeatures(text)...)

	vec := make([]float64, Dim)
	copy(vec, features)
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

// Similarity measures two embeddings with the chosen metric. Cosine assumes
// unit vectors; the distance-based metrics map onto (0, 1] via 1/(1+d).
func (a *Analyzer) Similarity(e1, e2 []float64, method Method) float64 {
	if len(e1) != len(e2) {
		return 0
	}
	switch method {
	case MethodEuclidean:
		var sum float64
		for i := range e1 {
			d := e1[i] - e2[i]
			sum += d * d
		}
		return 1.0 / (1.0 + math.Sqrt(sum))
	case MethodManhattan:
		var sum float64
		for i := range e1 {
			sum += math.Abs(e1[i] - e2[i])
		}
		return 1.0 / (1.0 + sum)
	default:
		return floats.Dot(e1, e2)
	}
}

// Compare encodes both texts and returns their similarity.
func (a *Analyzer) Compare(text1, text2 string, method Method) float64 {
	return a.Similarity(a.Encode(text1), a.Encode(text2), method)
}

// AnalyzeShift builds the full shift profile between two texts. The
// length ratio and word overlap use the raw texts, not the preprocessed
// forms, so punctuation-heavy responses still count toward length.
func (a *Analyzer) AnalyzeShift(text1, text2 string) ShiftAnalysis {
	similarity := a.Compare(text1, text2, MethodCosine)
	lengthRatio := float64(len(text2)) / math.Max(float64(len(text1)), 1)

	direction := ShiftStable
	if lengthRatio > 1.2 {
		direction = ShiftExpansion
	} else if lengthRatio < 0.8 {
		direction = ShiftContraction
	}

	return ShiftAnalysis{
		SimilarityScore: similarity,
		SemanticShift:   1.0 - similarity,
		WordOverlap:     WordOverlap(text1, text2),
		LengthRatio:     lengthRatio,
		ShiftMagnitude:  math.Abs(1.0 - similarity),
		ShiftDirection:  direction,
	}
}

// WordOverlap is the Jaccard index of the two texts' word sets. Two empty
// texts overlap fully.
func WordOverlap(text1, text2 string) float64 {
	w1 := wordSet(text1)
	w2 := wordSet(text2)
	if len(w1) == 0 && len(w2) == 0 {
		return 1.0
	}
	inter := 0
	for w := range w1 {
		if _, ok := w2[w]; ok {
			inter++
		}
	}
	union := len(w1) + len(w2) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// CategorizeSimilarity buckets a similarity score.
func CategorizeSimilarity(similarity float64) string {
	switch {
	case similarity >= 0.9:
		return "very_high"
	case similarity >= 0.7:
		return "high"
	case similarity >= 0.5:
		return "medium"
	case similarity >= 0.3:
		return "low"
	default:
		return "very_low"
	}
}

func preprocess(text string) string {
	text = strings.ToLower(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = stripRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// characterFeatures covers letter frequencies (a-z cycled over 50 slots) and
// basic shape statistics.
func characterFeatures(text string) []float64 {
	counts := make(map[rune]int)
	for _, r := range text {
		counts[r]++
	}
	total := math.Max(float64(len(text)), 1)

	features := make([]float64, 0, 53)
	for i := 0; i < 50; i++ {
		r := rune('a' + i%26)
		features = append(features, float64(counts[r])/total)
	}

	words := strings.Fields(text)
	upper := 0
	for _, r := range text {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
	}
	features = append(features,
		float64(len(text))/1000.0,
		float64(len(words))/total,
		float64(upper)/total,
	)
	return features
}

func wordFeatures(text string) []float64 {
	words := strings.Fields(text)
	features := make([]float64, 0, 13)

	if len(words) > 0 {
		lengths := make([]float64, len(words))
		unique := make(map[string]struct{}, len(words))
		for i, w := range words {
			lengths[i] = float64(len(w))
			unique[w] = struct{}{}
		}
		features = append(features,
			stat.Mean(lengths, nil)/10.0,
			stat.PopStdDev(lengths, nil)/10.0,
			float64(len(unique))/float64(len(words)),
		)
	} else {
		features = append(features, 0, 0, 0)
	}

	denom := math.Max(float64(len(words)), 1)
	for _, common := range commonWords {
		count := 0
		for _, w := range words {
			if w == common {
				count++
			}
		}
		features = append(features, float64(count)/denom)
	}
	return features
}

// lexicalFeatures captures sentence density, punctuation, and shallow
// sentiment/topic signals. Keyword hits are substring matches against the
// whole text, so "goodness" counts toward "good".
func lexicalFeatures(text string) []float64 {
	textLen := math.Max(float64(len(text)), 1)
	wordCount := math.Max(float64(len(strings.Fields(text))), 1)

	features := make([]float64, 0, 7)
	features = append(features,
		float64(len(strings.Split(text, ".")))/textLen,
		float64(strings.Count(text, "?"))/textLen,
		float64(strings.Count(text, "!"))/textLen,
	)

	for _, group := range [][]string{positiveWords, negativeWords, techWords, businessWords} {
		hits := 0
		for _, kw := range group {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		features = append(features, float64(hits)/wordCount)
	}
	return features
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}
