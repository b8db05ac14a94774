// Package quality derives response-quality and performance metrics from raw
// LLM interaction records. The scores are cheap lexical heuristics scaled
// into [0, 1], not model-graded evaluations.
package quality

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds the per-response quality scores.
type Metrics struct {
	ResponseLength     float64
	WordCount          float64
	SentenceCount      float64
	AvgWordLength      float64
	Readability        float64
	Coherence          float64
	Completeness       float64
	LanguageQuality    float64
	InformationDensity float64
}

// Overall folds the four judgement scores into one number.
func (m Metrics) Overall() float64 {
	return (m.Readability + m.Coherence + m.Completeness + m.LanguageQuality) / 4
}

// Performance holds throughput and confidence metrics.
type Performance struct {
	ResponseTime       float64
	TokensPerSecond    float64
	TimePerToken       float64
	TokenCount         int
	Category           string
	ConfidenceScore    float64
	ConfidenceCategory string
	HasConfidence      bool
}

var transitionWords = []string{
	"however", "therefore", "furthermore", "additionally", "moreover",
	"consequently", "meanwhile", "similarly", "in contrast", "for example",
}

var pronouns = []string{"it", "this", "that", "these", "those", "they", "them"}

var conclusionWords = []string{"conclusion", "summary", "finally", "therefore"}

var exampleWords = []string{"example", "instance", "such as", "for example"}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// ResponseQuality scores one response, optionally against its prompt. An
// empty prompt skips the relevance blend.
func ResponseQuality(response, prompt string) Metrics {
	words := strings.Fields(response)
	m := Metrics{
		ResponseLength: float64(len(response)),
		WordCount:      float64(len(words)),
		SentenceCount:  float64(len(sentences(response))),
	}
	if len(words) > 0 {
		var total float64
		for _, w := range words {
			total += float64(len(w))
		}
		m.AvgWordLength = total / float64(len(words))
	}
	m.Readability = readability(response)
	m.Coherence = coherence(response)
	m.Completeness = completeness(response, prompt)
	m.LanguageQuality = languageQuality(response)
	m.InformationDensity = informationDensity(response)
	return m
}

// PerformanceMetrics derives throughput numbers from timing and token
// counts. hasConfidence gates the confidence fields since zero is a valid
// score.
func PerformanceMetrics(responseTime float64, tokenCount int, confidence float64, hasConfidence bool) Performance {
	p := Performance{
		ResponseTime:    responseTime,
		TokenCount:      tokenCount,
		TokensPerSecond: float64(tokenCount) / math.Max(responseTime, 0.001),
		TimePerToken:    responseTime / math.Max(float64(tokenCount), 1),
		Category:        performanceCategory(responseTime, tokenCount),
	}
	if hasConfidence {
		p.ConfidenceScore = confidence
		p.ConfidenceCategory = ConfidenceCategory(confidence)
		p.HasConfidence = true
	}
	return p
}

// ConfidenceCategory buckets a confidence score.
func ConfidenceCategory(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "very_high"
	case confidence >= 0.7:
		return "high"
	case confidence >= 0.5:
		return "medium"
	case confidence >= 0.3:
		return "low"
	default:
		return "very_low"
	}
}

func performanceCategory(responseTime float64, tokenCount int) string {
	tps := float64(tokenCount) / math.Max(responseTime, 0.001)
	switch {
	case responseTime < 1.0 && tps > 100:
		return "excellent"
	case responseTime < 3.0 && tps > 50:
		return "good"
	case responseTime < 10.0 && tps > 20:
		return "acceptable"
	default:
		return "poor"
	}
}

func sentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// readability is a Flesch-like score folded into [0, 1]; longer sentences
// and longer words both push it down.
func readability(text string) float64 {
	sents := sentences(text)
	words := strings.Fields(text)
	if len(sents) == 0 || len(words) == 0 {
		return 0
	}
	avgSentenceLen := float64(len(words)) / float64(len(sents))
	var totalWordLen float64
	for _, w := range words {
		totalWordLen += float64(len(w))
	}
	avgWordLen := totalWordLen / float64(len(words))
	score := 1.0 - math.Min(1.0, (avgSentenceLen/20+avgWordLen/6)/2)
	return math.Max(0, score)
}

// coherence counts transition phrases and referential pronouns per sentence.
// Single-sentence responses are trivially coherent.
func coherence(text string) float64 {
	if text == "" {
		return 0
	}
	sents := sentences(text)
	if len(sents) < 2 {
		return 1.0
	}
	lower := strings.ToLower(text)
	transitions := 0
	for _, w := range transitionWords {
		if strings.Contains(lower, w) {
			transitions++
		}
	}
	wordSet := make(map[string]struct{})
	for _, w := range strings.Fields(lower) {
		wordSet[w] = struct{}{}
	}
	pronounHits := 0
	for _, p := range pronouns {
		if _, ok := wordSet[p]; ok {
			pronounHits++
		}
	}
	return math.Min(1.0, (float64(transitions)*0.1+float64(pronounHits)*0.05)/float64(len(sents)))
}

// completeness rewards a conclusion, examples, and multi-sentence structure,
// then blends in prompt-keyword overlap when a prompt is present.
func completeness(response, prompt string) float64 {
	if response == "" {
		return 0
	}
	lower := strings.ToLower(response)
	score := 0.0
	if containsAny(lower, conclusionWords) {
		score += 0.4
	}
	if containsAny(lower, exampleWords) {
		score += 0.3
	}
	if len(sentences(response)) >= 2 {
		score += 0.3
	}
	if prompt != "" {
		promptWords := make(map[string]struct{})
		for _, w := range strings.Fields(strings.ToLower(prompt)) {
			promptWords[w] = struct{}{}
		}
		overlap := 0
		seen := make(map[string]struct{})
		for _, w := range strings.Fields(lower) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			if _, ok := promptWords[w]; ok {
				overlap++
			}
		}
		ratio := float64(overlap) / math.Max(float64(len(promptWords)), 1)
		score = (score + ratio) / 2
	}
	return math.Min(1.0, score)
}

func languageQuality(text string) float64 {
	if text == "" {
		return 0
	}
	repetition := repetitionScore(text)
	grammar := grammarScore(text)
	diversity := typeTokenRatio(text)
	quality := grammar*0.5 + diversity*0.3 + (1-repetition)*0.2
	return math.Max(0, math.Min(1, quality))
}

func informationDensity(text string) float64 {
	if text == "" {
		return 0
	}
	words := strings.Fields(text)
	content := 0
	for _, w := range words {
		if _, stop := stopWords[strings.ToLower(w)]; !stop {
			content++
		}
	}
	return float64(content) / math.Max(float64(len(words)), 1)
}

// repetitionScore is the share of the text taken by its most frequent word,
// less a 10% allowance.
func repetitionScore(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 2 {
		return 0
	}
	counts := make(map[string]int)
	maxCount := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
	}
	return math.Max(0, float64(maxCount)/float64(len(words))-0.1)
}

func grammarScore(text string) float64 {
	score := 0.0
	if text != "" && isUpper(rune(text[0])) {
		score += 0.3
	}
	if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
		score += 0.3
	}
	sents := sentences(text)
	proper := 0
	for _, s := range sents {
		if s != "" && isUpper(rune(s[0])) {
			proper++
		}
	}
	score += float64(proper) / math.Max(float64(len(sents)), 1) * 0.4
	return math.Min(1.0, score)
}

func typeTokenRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

// Trend describes how one metric moved against its history.
type Trend struct {
	Metric        string
	PctChange     float64
	Direction     string
	Volatility    float64
	HasVolatility bool
}

// Trend directions.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// trendMetrics are the metrics tracked across records.
var trendMetrics = []string{"response_time", "token_count", "confidence_score", "coherence_score"}

// historyCap bounds the retained history.
const historyCap = 100

// TrendTracker compares current metrics against a bounded history of prior
// records. It belongs to one session, like the detector windows.
type TrendTracker struct {
	history []map[string]float64
}

// NewTrendTracker returns an empty tracker.
func NewTrendTracker() *TrendTracker { return &TrendTracker{} }

// Observe computes trends for the tracked metrics present in current, then
// appends current to the history. The first observation yields no trends.
func (t *TrendTracker) Observe(current map[string]float64) []Trend {
	var out []Trend
	if len(t.history) > 0 {
		for _, metric := range trendMetrics {
			cur, ok := current[metric]
			if !ok {
				continue
			}
			var hist []float64
			for _, h := range t.history {
				if v, ok := h[metric]; ok {
					hist = append(hist, v)
				}
			}
			if len(hist) == 0 {
				continue
			}
			avg := stat.Mean(hist, nil)
			pct := (cur - avg) / math.Max(avg, 0.001) * 100

			direction := TrendStable
			if pct > 5 {
				direction = TrendImproving
			} else if pct < -5 {
				direction = TrendDeclining
			}
			tr := Trend{Metric: metric, PctChange: pct, Direction: direction}
			if len(hist) > 1 {
				tr.Volatility = stat.PopStdDev(hist, nil)
				tr.HasVolatility = true
			}
			out = append(out, tr)
		}
	}
	t.history = append(t.history, current)
	if len(t.history) > historyCap {
		t.history = t.history[len(t.history)-historyCap:]
	}
	return out
}

// Len reports the retained history length.
func (t *TrendTracker) Len() int { return len(t.history) }
