// Package repo fetches reference data (metric baselines, alert thresholds,
// drift baseline embeddings) from a remote configuration service, with a
// cache in front so restarting sessions does not hammer the source.
package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/driftguardstack/driftguard-engine/internal/baseline"
	"github.com/driftguardstack/driftguard-engine/internal/cache"
	"github.com/driftguardstack/driftguard-engine/internal/drift"
	"github.com/driftguardstack/driftguard-engine/internal/utils"
)

// Cache key prefixes for the reference payloads.
const (
	baselinesCacheKey  = "driftguard:ref:baselines"
	thresholdsCacheKey = "driftguard:ref:thresholds"
	driftCacheKey      = "driftguard:ref:drift"
)

// ReferenceClient pulls reference tables over HTTP. Responses are JSON; the
// relevant sections are addressed with gjson paths so the source service can
// wrap them in whatever envelope it likes.
type ReferenceClient struct {
	baseURL        string
	baselinesPath  string
	thresholdsPath string
	driftPath      string
	httpClient     *http.Client
	cache          cache.Provider
	cacheTTL       time.Duration
}

// NewReferenceClient constructs a client for the configured reference
// service. provider may be nil, in which case nothing is cached.
func NewReferenceClient(baseURL, baselinesPath, thresholdsPath, driftPath string, timeout time.Duration, provider cache.Provider, cacheTTL time.Duration) *ReferenceClient {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	return &ReferenceClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		baselinesPath:  baselinesPath,
		thresholdsPath: thresholdsPath,
		driftPath:      driftPath,
		httpClient:     &http.Client{Timeout: timeout},
		cache:          provider,
		cacheTTL:       cacheTTL,
	}
}

// FetchBaselines retrieves the per-model metric baseline table. The payload
// carries rows under "baselines", each with a model_id and a metrics object:
//
//	{"baselines": [{"model_id": "gpt-4", "metrics": {"response_time": 2.5}}]}
func (c *ReferenceClient) FetchBaselines(ctx context.Context) (*baseline.BaselineTable, error) {
	body, err := c.fetch(ctx, baselinesCacheKey, c.baselinesPath)
	if err != nil {
		return baseline.EmptyBaselines(), err
	}

	table := baseline.EmptyBaselines()
	rows := gjson.GetBytes(body, "baselines")
	if !rows.Exists() {
		return table, fmt.Errorf("reference payload missing baselines section")
	}
	rows.ForEach(func(_, row gjson.Result) bool {
		modelID := row.Get("model_id").String()
		row.Get("metrics").ForEach(func(metric, value gjson.Result) bool {
			if value.Type == gjson.Number {
				table.AddMetric(modelID, metric.String(), value.Float())
			}
			return true
		})
		return true
	})
	return table, nil
}

// FetchThresholds retrieves the alert threshold table from rows under
// "thresholds".
func (c *ReferenceClient) FetchThresholds(ctx context.Context) (*baseline.ThresholdTable, error) {
	body, err := c.fetch(ctx, thresholdsCacheKey, c.thresholdsPath)
	if err != nil {
		return baseline.EmptyThresholds(), err
	}

	table := baseline.EmptyThresholds()
	rows := gjson.GetBytes(body, "thresholds")
	if !rows.Exists() {
		return table, fmt.Errorf("reference payload missing thresholds section")
	}
	rows.ForEach(func(_, row gjson.Result) bool {
		table.Add(row.Get("metric_name").String(), baseline.Threshold{
			Type:        row.Get("threshold_type").String(),
			Warning:     row.Get("warning_threshold").Float(),
			Critical:    row.Get("critical_threshold").Float(),
			Unit:        row.Get("unit").String(),
			Description: row.Get("description").String(),
		})
		return true
	})
	return table, nil
}

// FetchDriftBaselines retrieves the drift baseline embedding set from rows
// under "drift_baselines". Rows carry either a literal embedding array or a
// text sample that is encoded on load.
func (c *ReferenceClient) FetchDriftBaselines(ctx context.Context) ([][]float64, error) {
	body, err := c.fetch(ctx, driftCacheKey, c.driftPath)
	if err != nil {
		return nil, err
	}

	rows := gjson.GetBytes(body, "drift_baselines")
	if !rows.Exists() {
		return nil, fmt.Errorf("reference payload missing drift_baselines section")
	}

	embedder := drift.NewEmbedder()
	var out [][]float64
	rows.ForEach(func(_, row gjson.Result) bool {
		if emb := row.Get("embedding"); emb.IsArray() {
			var vec []float64
			emb.ForEach(func(_, v gjson.Result) bool {
				vec = append(vec, v.Float())
				return true
			})
			out = append(out, vec)
			return true
		}
		if text := row.Get("text").String(); text != "" {
			out = append(out, embedder.Encode(text))
		}
		return true
	})
	return out, nil
}

// fetch returns the raw payload for a reference path, serving from cache
// when possible.
func (c *ReferenceClient) fetch(ctx context.Context, cacheKey, refPath string) ([]byte, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("reference service not configured")
	}
	if refPath == "" {
		return nil, fmt.Errorf("reference path not configured")
	}

	if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolvePath(refPath), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewAppError("repo.fetch", "reference request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reference service returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reference payload: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("reference payload is not valid JSON")
	}

	if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL); err != nil {
		// Cache failures degrade to refetching, never to a hard error.
		return body, nil
	}
	return body, nil
}

func (c *ReferenceClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
