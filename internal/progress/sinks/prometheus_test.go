package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/elections-scraper/internal/progress"
)

func runEvents(runID uuid.UUID) []progress.Event {
	discovery := progress.New(runID, progress.StageDiscoveryDone)
	discovery.Count = 2

	fetch := progress.New(runID, progress.StageFetchDone)
	fetch.Index = 0
	fetch.URL = "https://www.volby.cz/pls/ps2017nss/ps311?xobec=529303"
	fetch.StatusClass = progress.Status2xx
	fetch.Bytes = 2048
	fetch.Dur = 150 * time.Millisecond

	done := progress.New(runID, progress.StagePrecinctDone)
	done.Index = 0
	done.Code = "529303"

	failed := progress.New(runID, progress.StagePrecinctError)
	failed.Index = 1
	failed.ErrKind = "protocol"

	run := progress.New(runID, progress.StageRunDone)
	run.Dur = 3 * time.Second
	return []progress.Event{discovery, fetch, done, failed, run}
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.discovered), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.precincts.WithLabelValues("success")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.precincts.WithLabelValues("error")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.precinctErrors.WithLabelValues("protocol")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchRequests.WithLabelValues("2xx")), 1e-9)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("success")), 1e-9)
	require.InDelta(t, 3.0, testutil.ToFloat64(sink.runDuration), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "scraper_fetch_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestPrometheusSinkTextfileExport(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))

	path := filepath.Join(t.TempDir(), "scraper.prom")
	require.NoError(t, prometheus.WriteToTextfile(path, reg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `scraper_precincts_total{result="success"} 1`)
	require.Contains(t, string(raw), "scraper_precincts_discovered_total 2")
}
