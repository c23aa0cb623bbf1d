package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRegistry_RuntimeCollectors(t *testing.T) {
	body := scrape(t, NewRegistry().Handler())
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestReplenishMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordReplenishRun("co.uk", "completed", 12)
	r.RecordReplenishRun("co.uk", "skipped", 0)
	r.RecordReplenishAttempt("co.uk", OutcomeSuccess)
	r.RecordReplenishAttempt("co.uk", OutcomeSuccess)
	r.RecordReplenishAttempt("co.uk", OutcomeDuplicate)
	r.IncInvalidation("co.uk")

	body := scrape(t, r.Handler())
	for _, want := range []string{
		`sesspool_replenish_runs_total{origin="co.uk",result="completed"} 1`,
		`sesspool_replenish_runs_total{origin="co.uk",result="skipped"} 1`,
		`sesspool_replenish_attempts_total{origin="co.uk",outcome="success"} 2`,
		`sesspool_replenish_attempts_total{origin="co.uk",outcome="duplicate"} 1`,
		`sesspool_replenish_duration_seconds_count{origin="co.uk"} 1`,
		`sesspool_invalidations_total{origin="co.uk"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestClientAndRequestMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordUpstream("com", 200)
	r.RecordUpstream("com", 401)
	r.RecordUpstream("com", 0)
	r.RecordRotation("com", "replayed")
	r.RecordRequest("GET", "/admin/v1/pool", 200)
	r.ObserveRequestDuration("GET", "/admin/v1/pool", 0.002)
	r.ObserveSnapshotWrite(0.001, nil)
	r.ObserveSnapshotWrite(0.001, errors.New("disk full"))

	body := scrape(t, r.Handler())
	for _, want := range []string{
		`sesspool_upstream_requests_total{class="2xx",origin="com"} 1`,
		`sesspool_upstream_requests_total{class="4xx",origin="com"} 1`,
		`sesspool_upstream_requests_total{class="error",origin="com"} 1`,
		`sesspool_token_rotations_total{origin="com",result="replayed"} 1`,
		`sesspool_requests_total{method="GET",route="/admin/v1/pool",status="200"} 1`,
		`sesspool_request_duration_seconds_count{method="GET",route="/admin/v1/pool"} 1`,
		`sesspool_snapshot_write_duration_seconds_count 2`,
		`sesspool_snapshot_write_errors_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
}

type fakePool map[string]PoolSize

func (f fakePool) PoolSizes() map[string]PoolSize { return f }

func TestPoolCollector(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterPool(fakePool{"co.uk": {Valid: 3, Total: 5, Replenishing: true}}); err != nil {
		t.Fatalf("RegisterPool: %v", err)
	}

	body := scrape(t, r.Handler())
	for _, want := range []string{
		`sesspool_pool_credentials{origin="co.uk",state="valid"} 3`,
		`sesspool_pool_credentials{origin="co.uk",state="total"} 5`,
		`sesspool_pool_replenishing{origin="co.uk"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.RecordReplenishRun("com", "completed", 1)
	r.RecordReplenishAttempt("com", OutcomeFailure)
	r.IncInvalidation("com")
	r.RecordUpstream("com", 500)
	r.RecordRotation("com", "replayed")
	r.RecordRequest("GET", "/", 200)
	r.ObserveRequestDuration("GET", "/", 1)
	r.ObserveSnapshotWrite(1, nil)
	if err := r.RegisterPool(fakePool{}); err != nil {
		t.Errorf("RegisterPool on nil = %v", err)
	}
	if r.Handler() == nil {
		t.Error("Handler() on nil registry should fall back to the default handler")
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 200: "2xx", 302: "3xx", 403: "4xx", 503: "5xx", 600: "error"}
	for status, want := range tests {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RecordReplenishAttempt("com", OutcomeSuccess)
				r.RecordUpstream("com", 200)
				r.RecordRequest("GET", "/health", 200)
			}
		}()
	}
	wg.Wait()

	body := scrape(t, r.Handler())
	if !strings.Contains(body, `sesspool_replenish_attempts_total{origin="com",outcome="success"} 1000`) {
		t.Error("expected 1000 attempts after concurrent updates")
	}
}
