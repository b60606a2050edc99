package datafeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coachpo/folio/internal/schema"
)

func TestQueryBarsDecodesSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instrument"); got != "IF2406.CFFEX" {
			t.Errorf("instrument query = %q", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1m" {
			t.Errorf("interval query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"timestamp":1717400000000,"open":3900,"high":3905,"low":3898,"close":3902,"volume":55},
			{"timestamp":1717400060000,"open":3902,"high":3907,"low":3901,"close":3906,"volume":40}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	bars, err := client.QueryBars(context.Background(), "IF2406.CFFEX", schema.IntervalMinute,
		time.UnixMilli(1717400000000), time.UnixMilli(1717400060000))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Close != 3902 || bars[1].Close != 3906 {
		t.Fatalf("closes = %v, %v", bars[0].Close, bars[1].Close)
	}
	if bars[0].Instrument != "IF2406.CFFEX" || bars[0].Interval != schema.IntervalMinute {
		t.Fatalf("bar identity = %+v", bars[0])
	}
}

func TestQueryBarsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"timestamp":1717400000000,"close":3902}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	bars, err := client.QueryBars(context.Background(), "a", schema.IntervalMinute, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("query after retries: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars", len(bars))
	}
	if calls.Load() != 3 {
		t.Fatalf("server called %d times, want 3", calls.Load())
	}
}

func TestQueryBarsStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	_, err := client.QueryBars(context.Background(), "a", schema.IntervalMinute, time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("client error retried, calls = %d", calls.Load())
	}
}
