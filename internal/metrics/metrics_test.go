package metrics_test

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/nabbar/edgecache/internal/cache"
	"github.com/nabbar/edgecache/internal/metrics"
	"github.com/nabbar/edgecache/internal/ratelimit"
)

func findGauge(t *testing.T, fams []*dto.MetricFamily, name string) float64 {
	t.Helper()
	for _, f := range fams {
		if f.GetName() == name {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric family %q not found", name)
	return 0
}

func findCounterValue(t *testing.T, fams []*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	for _, f := range fams {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("counter %q{%s=%q} not found", name, label, value)
	return 0
}

func TestObserveCacheSetsGauges(t *testing.T) {
	r := metrics.New("edgecache_test")
	r.ObserveCache(cache.Stats{Hits: 5, Misses: 2, Evictions: 1, BytesUsed: 1024, PeakBytes: 2048})

	fams, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	if got := findGauge(t, fams, "edgecache_test_cache_hits_total"); got != 5 {
		t.Fatalf("expected 5 hits, got %v", got)
	}
	if got := findGauge(t, fams, "edgecache_test_cache_bytes_in_use"); got != 1024 {
		t.Fatalf("expected 1024 bytes in use, got %v", got)
	}
}

func TestObserveDenialIgnoresAdmitted(t *testing.T) {
	r := metrics.New("edgecache_denial_test")
	r.ObserveDenial(ratelimit.Admitted)
	r.ObserveDenial(ratelimit.Banned)
	r.ObserveDenial(ratelimit.TooManyConcurrent)

	fams, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	if got := findCounterValue(t, fams, "edgecache_denial_test_ratelimit_denied_total", "kind", "banned"); got != 1 {
		t.Fatalf("expected 1 banned denial, got %v", got)
	}
	if got := findCounterValue(t, fams, "edgecache_denial_test_ratelimit_denied_total", "kind", "too_many_concurrent"); got != 1 {
		t.Fatalf("expected 1 too_many_concurrent denial, got %v", got)
	}
}

func TestConnOpenedClosedPairing(t *testing.T) {
	r := metrics.New("edgecache_conn_test")
	r.ConnOpened()
	r.ConnOpened()
	r.ConnClosed()
	r.ConnClosed()

	fams, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}
	if got := findGauge(t, fams, "edgecache_conn_test_conn_open"); got != 0 {
		t.Fatalf("expected open connections back to 0, got %v", got)
	}
}

func TestServeNoAddrIsNoop(t *testing.T) {
	r := metrics.New("edgecache_serve_test")
	done := make(chan error, 1)
	go func() { done <- r.Serve(context.Background(), "") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error for empty addr, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve with empty addr did not return promptly")
	}
}
