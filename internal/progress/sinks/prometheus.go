package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/elections-scraper/internal/progress"
)

// PrometheusSink turns run events into Prometheus collectors.
type PrometheusSink struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Gauge
	discovered      prometheus.Counter
	precincts       *prometheus.CounterVec
	precinctErrors  *prometheus.CounterVec
	fetchRequests   *prometheus.CounterVec
	fetchBytes      prometheus.Counter
	fetchDuration   *prometheus.HistogramVec
	lastRunFinished prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Finished scrape runs partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_last_run_duration_seconds",
			Help: "Wall time of the most recent run.",
		}),
		lastRunFinished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_last_run_finished_timestamp_seconds",
			Help: "Unix time the most recent run finished.",
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_precincts_discovered_total",
			Help: "Precinct URLs found on district listings.",
		}),
		precincts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_precincts_total",
			Help: "Processed precincts partitioned by result.",
		}, []string{"result"}),
		precinctErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_precinct_errors_total",
			Help: "Failed precincts partitioned by error kind.",
		}, []string{"kind"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_requests_total",
			Help: "Fetch attempts partitioned by status class.",
		}, []string{"status_class"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_fetch_bytes_total",
			Help: "Response bytes downloaded.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by status class.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"status_class"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runs,
		s.runDuration,
		s.lastRunFinished,
		s.discovered,
		s.precincts,
		s.precinctErrors,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageDiscoveryDone:
		s.discovered.Add(float64(evt.Count))
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	case progress.StagePrecinctDone:
		s.precincts.WithLabelValues("success").Inc()
	case progress.StagePrecinctError:
		s.precincts.WithLabelValues("error").Inc()
		s.precinctErrors.WithLabelValues(evt.ErrKind).Inc()
	case progress.StageRunDone:
		s.finishRun(evt, "success")
	case progress.StageRunError:
		s.finishRun(evt, "error")
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runs.WithLabelValues(result).Inc()
	s.runDuration.Set(evt.Dur.Seconds())
	s.lastRunFinished.Set(float64(evt.TS.Unix()))
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
