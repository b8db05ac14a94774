// mock-source emits synthetic LLM telemetry as NDJSON, either to stdout or
// POSTed to a running engine's stream endpoint. Useful for local smoke tests.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

type model struct {
	id           string
	responseTime float64
	tokens       float64
}

var models = []model{
	{id: "gpt-4", responseTime: 2.5, tokens: 150},
	{id: "claude-3", responseTime: 1.8, tokens: 180},
	{id: "llama-3", responseTime: 1.2, tokens: 120},
}

var normalTexts = []string{
	"The function returns the sum of both arguments. For example, add(2, 3) returns 5.",
	"To configure the service, set the environment variable and restart the process.",
	"The query plan shows a sequential scan. Adding an index on the user_id column should help.",
	"First, install the dependencies. Then run the migration script before starting the server.",
}

var driftedTexts = []string{
	"BUY NOW!!! Limited offer, click here for amazing deals and discounts today!!!",
	"asdf qwerty zxcv random tokens with no structure whatsoever lorem ipsum dolor",
}

func main() {
	var target string
	var count int
	var interval time.Duration
	var anomalyEvery int
	var driftEvery int
	var seed int64
	flag.StringVar(&target, "target", "", "Engine stream URL (empty writes NDJSON to stdout)")
	flag.IntVar(&count, "count", 100, "Number of records to emit (0 runs forever)")
	flag.DurationVar(&interval, "interval", 100*time.Millisecond, "Delay between records")
	flag.IntVar(&anomalyEvery, "anomaly-every", 25, "Inject a latency spike every N records (0 disables)")
	flag.IntVar(&driftEvery, "drift-every", 40, "Inject drifted response text every N records (0 disables)")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	logger := log.New(os.Stderr, "mock-source ", log.LstdFlags|log.Lmicroseconds)

	var emit func([]byte) error
	if target == "" {
		out := os.Stdout
		emit = func(line []byte) error {
			_, err := out.Write(append(line, '\n'))
			return err
		}
	} else {
		streamID := uuid.NewString()
		client := &http.Client{Timeout: 10 * time.Second}
		logger.Printf("posting to %s stream %s", target, streamID)
		emit = func(line []byte) error {
			req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(append(line, '\n')))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/x-ndjson")
			req.Header.Set("X-Driftguard-Stream", streamID)
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return fmt.Errorf("engine returned %d: %s", resp.StatusCode, body)
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
	}

	for i := 0; count == 0 || i < count; i++ {
		rec := nextRecord(rng, i, anomalyEvery, driftEvery)
		line, err := json.Marshal(rec)
		if err != nil {
			logger.Fatalf("marshal record: %v", err)
		}
		if err := emit(line); err != nil {
			logger.Fatalf("emit record: %v", err)
		}
		time.Sleep(interval)
	}
}

func nextRecord(rng *rand.Rand, i, anomalyEvery, driftEvery int) map[string]any {
	m := models[rng.Intn(len(models))]

	responseTime := m.responseTime * (1 + rng.NormFloat64()*0.1)
	if responseTime < 0.05 {
		responseTime = 0.05
	}
	tokens := int(m.tokens * (1 + rng.NormFloat64()*0.15))
	if tokens < 1 {
		tokens = 1
	}
	text := normalTexts[rng.Intn(len(normalTexts))]

	if anomalyEvery > 0 && i > 0 && i%anomalyEvery == 0 {
		responseTime *= 5
	}
	if driftEvery > 0 && i > 0 && i%driftEvery == 0 {
		text = driftedTexts[rng.Intn(len(driftedTexts))]
	}

	return map[string]any{
		"request_id":       uuid.NewString(),
		"model_id":         m.id,
		"timestamp":        time.Now().UTC().Format(time.RFC3339Nano),
		"response_time":    responseTime,
		"token_count":      tokens,
		"confidence_score": 0.6 + rng.Float64()*0.4,
		"prompt_text":      "Explain how the function works with an example.",
		"response_text":    text,
	}
}
