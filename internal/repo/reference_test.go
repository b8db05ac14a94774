package repo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

const referencePayload = `{
	"baselines": [
		{"model_id": "gpt-4", "metrics": {"response_time": 2.5, "tokens_per_second": 45.0, "model_name": "GPT-4"}},
		{"model_id": "default", "metrics": {"response_time": 2.0}}
	],
	"thresholds": [
		{"metric_name": "response_time", "threshold_type": "upper", "warning_threshold": 3.0, "critical_threshold": 5.0, "unit": "seconds"}
	],
	"drift_baselines": [
		{"embedding": [0.6, 0.8]},
		{"text": "expected response shape"}
	]
}`

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newReferenceClient(rt roundTripFunc, provider *stubCache) *ReferenceClient {
	c := NewReferenceClient("http://reference.local", "/v1/baselines", "/v1/thresholds", "/v1/drift", 5*time.Second, provider, time.Minute)
	c.httpClient = newTestClient(rt)
	return c
}

func TestFetchBaselines(t *testing.T) {
	c := newReferenceClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/baselines" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, referencePayload), nil
	}, newStubCache())

	table, err := c.FetchBaselines(context.Background())
	if err != nil {
		t.Fatalf("fetch baselines: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 model rows, got %d", table.Len())
	}
	if v, ok := table.Value("gpt-4", "response_time"); !ok || v != 2.5 {
		t.Fatalf("expected response_time 2.5, got %f (ok=%v)", v, ok)
	}
	// Non-numeric metric values are ignored.
	if _, ok := table.Value("gpt-4", "model_name"); ok {
		t.Fatalf("string cell leaked into numeric table")
	}
}

func TestFetchThresholds(t *testing.T) {
	c := newReferenceClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, referencePayload), nil
	}, newStubCache())

	table, err := c.FetchThresholds(context.Background())
	if err != nil {
		t.Fatalf("fetch thresholds: %v", err)
	}
	th, ok := table.Get("response_time")
	if !ok || th.Type != "upper" || th.Warning != 3.0 || th.Critical != 5.0 {
		t.Fatalf("unexpected threshold row: %+v (ok=%v)", th, ok)
	}
}

func TestFetchDriftBaselines(t *testing.T) {
	c := newReferenceClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, referencePayload), nil
	}, newStubCache())

	vecs, err := c.FetchDriftBaselines(context.Background())
	if err != nil {
		t.Fatalf("fetch drift baselines: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 0.6 || vecs[0][1] != 0.8 {
		t.Fatalf("literal embedding misparsed: %v", vecs[0])
	}
	if len(vecs[1]) != 384 {
		t.Fatalf("text row should encode to 384 dims, got %d", len(vecs[1]))
	}
}

func TestFetchServesFromCache(t *testing.T) {
	hits := 0
	c := newReferenceClient(func(*http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(http.StatusOK, referencePayload), nil
	}, newStubCache())

	ctx := context.Background()
	if _, err := c.FetchBaselines(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.FetchBaselines(ctx); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream request, got %d", hits)
	}
}

func TestFetchErrors(t *testing.T) {
	c := newReferenceClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, "boom"), nil
	}, newStubCache())
	if _, err := c.FetchBaselines(context.Background()); err == nil {
		t.Fatalf("expected error for upstream failure")
	}

	c = newReferenceClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, "not json"), nil
	}, newStubCache())
	if _, err := c.FetchBaselines(context.Background()); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}

	c = newReferenceClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"unrelated": true}`), nil
	}, newStubCache())
	if _, err := c.FetchBaselines(context.Background()); err == nil {
		t.Fatalf("expected error for missing baselines section")
	}

	unconfigured := NewReferenceClient("", "", "", "", time.Second, nil, 0)
	if _, err := unconfigured.FetchBaselines(context.Background()); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
