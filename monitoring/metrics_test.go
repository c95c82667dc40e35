package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncPages("fetched")
	m.IncCards("collected")
	m.AddRecords("normalized", 3)
	m.AddUpserted(2)
	m.ObserveStage("persist", time.Now(), nil)
	if err := m.WriteTextfile("ignored.prom"); err != nil {
		t.Errorf("WriteTextfile on nil: %v", err)
	}
}

func TestObserveStageCountsStatus(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("collect", time.Now(), nil)
	m.ObserveStage("collect", time.Now(), errors.New("boom"))
	m.ObserveStage("collect", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("collect", "success")); got != 1 {
		t.Errorf("success runs: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StageRunsTotal.WithLabelValues("collect", "failure")); got != 2 {
		t.Errorf("failure runs: got %v, want 2", got)
	}
}

func TestAddRecordsIgnoresZero(t *testing.T) {
	m := NewMetrics()
	m.AddRecords("duplicate", 0)
	m.AddRecords("normalized", 4)
	m.AddUpserted(4)

	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues("normalized")); got != 4 {
		t.Errorf("normalized: got %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.RowsUpserted); got != 4 {
		t.Errorf("upserted: got %v, want 4", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.AddUpserted(7)

	path := filepath.Join(t.TempDir(), "krisha.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "krisha_rows_upserted_total 7") {
		t.Errorf("textfile missing upsert counter:\n%s", data)
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestServerRoutes(t *testing.T) {
	m := NewMetrics()
	m.IncPages("fetched")

	tests := []struct {
		name   string
		pinger Pinger
		path   string
		code   int
		body   string
	}{
		{"metrics", nil, "/metrics", http.StatusOK, "krisha_pages_total"},
		{"health without store", nil, "/healthz", http.StatusOK, `"status":"ok"`},
		{"healthy store", fakePinger{}, "/healthz", http.StatusOK, `"store":"healthy"`},
		{"unhealthy store", fakePinger{err: errors.New("down")}, "/healthz", http.StatusServiceUnavailable, `"store":"unhealthy"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", m, tt.pinger)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.code {
				t.Errorf("status: got %d, want %d", rec.Code, tt.code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}
