package freeseek

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_BatchInfer(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)

		var body inferPayload
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model == "bad" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown model"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"echo": body.Data["prompt"]})
	})
	c, _ := newTestClient(t, testConfig(srv.URL))

	reqs := []BatchRequest{
		{Model: "m", Data: map[string]any{"prompt": "one"}},
		{Model: "bad", Data: map[string]any{"prompt": "two"}},
		{Model: "m", Data: map[string]any{"prompt": "three"}},
		{Model: "m", Data: map[string]any{"prompt": "four"}},
	}
	results := c.BatchInfer(context.Background(), reqs, 2)

	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	for i, want := range []string{"one", "", "three", "four"} {
		r := results[i]
		if want == "" {
			if r.OK() {
				t.Errorf("result %d: expected failure", i)
			}
			continue
		}
		if !r.OK() || r.Result["echo"] != want {
			t.Errorf("result %d: expected %q, got %+v", i, want, r)
		}
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent calls, got %d", peak.Load())
	}

	raw, err := json.Marshal(results[1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rec ErrorRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Model != "bad" || rec.Error.Type != "APIError" || rec.Error.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected error record %s", raw)
	}

	raw, _ = json.Marshal(results[0])
	if string(raw) != `{"echo":"one"}` {
		t.Errorf("expected successful item to marshal as its result, got %s", raw)
	}
}

func TestClient_BatchInfer_InvalidItem(t *testing.T) {
	srv, calls := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	c, _ := newTestClient(t, testConfig(srv.URL))

	results := c.BatchInfer(context.Background(), []BatchRequest{
		{Model: "", Data: map[string]any{"prompt": "x"}},
		{Model: "m", Data: map[string]any{"prompt": "y"}},
	}, 0)

	if results[0].OK() || !results[1].OK() {
		t.Errorf("unexpected results %+v", results)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestClient_BatchInfer_Empty(t *testing.T) {
	c, _ := newTestClient(t, testConfig("http://127.0.0.1:1"))
	if results := c.BatchInfer(context.Background(), nil, 3); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
