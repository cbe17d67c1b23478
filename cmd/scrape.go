package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/elections-scraper/internal/config"
	"github.com/JakeFAU/elections-scraper/internal/discovery"
	"github.com/JakeFAU/elections-scraper/internal/dispatcher"
	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/elections-scraper/internal/fetcher/colly"
	runid "github.com/JakeFAU/elections-scraper/internal/id/uuid"
	"github.com/JakeFAU/elections-scraper/internal/logging"
	"github.com/JakeFAU/elections-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/elections-scraper/internal/progress"
	"github.com/JakeFAU/elections-scraper/internal/progress/sinks"
	"github.com/JakeFAU/elections-scraper/internal/report"
	"github.com/JakeFAU/elections-scraper/internal/storage/local"
	"github.com/JakeFAU/elections-scraper/internal/telemetry"
	"github.com/JakeFAU/elections-scraper/internal/worker"
	"github.com/JakeFAU/elections-scraper/internal/writer"
)

const (
	serviceName     = "elections-scraper"
	shutdownTimeout = 5 * time.Second
)

// pipeline holds the collaborators of one run.
type pipeline struct {
	cfg     config.Config
	runID   uuid.UUID
	fetcher election.Fetcher
	emitter progress.Emitter
	confirm writer.Confirmer
	stderr  io.Writer
	logger  *zap.Logger
}

func runScrape(cmd *cobra.Command, opts *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := opts.cfg
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	runID := runid.New().MustRunID()
	logger = logger.With(zap.Stringer("run_id", runID))

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, runID.String())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger.Named("events")), promSink)

	base, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: !cfg.Crawler.IgnoreRobots,
		Timeout:       cfg.RequestTimeout(),
		Parallelism:   cfg.Crawler.Concurrency,
		Delay:         time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.RatePerSec, Burst: cfg.Crawler.Burst})
	fetcher := ratelimit.NewFetcher(base, limiter, logger.Named("ratelimit"))

	var confirm writer.Confirmer = writer.NewPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	if opts.yes {
		confirm = writer.AlwaysConfirm{}
	}

	p := &pipeline{
		cfg:     cfg,
		runID:   runID,
		fetcher: fetcher,
		emitter: hub,
		confirm: confirm,
		stderr:  cmd.ErrOrStderr(),
		logger:  logger,
	}

	start := time.Now()
	hub.Emit(progress.New(runID, progress.StageRunStart))
	summary, runErr := p.run(ctx, opts.districtURL, opts.outputPath, modeOf(opts))
	summary.Duration = time.Since(start)

	finish := progress.New(runID, progress.StageRunDone)
	if runErr != nil {
		finish.Stage = progress.StageRunError
		finish.ErrKind = election.KindOf(runErr)
	}
	finish.Count = summary.Written
	finish.Dur = summary.Duration
	hub.Emit(finish)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			logger.Warn("metrics textfile export failed", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	report.Render(cmd.ErrOrStderr(), summary)
	return runErr
}

func modeOf(opts *options) election.DiscoveryMode {
	if opts.abroad {
		return election.DiscoveryAbroad
	}
	return election.DiscoveryDomestic
}

// run discovers, scrapes and writes. The summary is filled in as far as the
// run got, even on error.
func (p *pipeline) run(
	ctx context.Context,
	districtURL string,
	outputPath string,
	mode election.DiscoveryMode,
) (report.Summary, error) {
	summary := report.Summary{RunID: p.runID, Path: outputPath, State: writer.StateFresh}

	ext, err := extract.New(p.cfg.Site.VotePattern)
	if err != nil {
		return summary, fmt.Errorf("init extractor: %w", err)
	}
	w := worker.New(p.fetcher, ext, p.emitter, worker.Config{
		RunID: p.runID,
		Retry: p.cfg.RetryPolicy(),
	}, p.logger)

	urls, err := p.discover(ctx, w, districtURL, mode)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(urls)

	d := dispatcher.New(w, dispatcher.Config{
		Concurrency: p.cfg.Crawler.Concurrency,
		Mode:        p.cfg.FailureMode(),
		RunID:       p.runID,
	}, p.emitter, p.logger)

	var out io.Writer
	if p.cfg.Progress.Enabled {
		out = p.stderr
	}
	indicator := progress.NewIndicator(out, "precincts", len(urls), p.cfg.ProgressInterval())
	indicator.Start(ctx)
	outcome, err := d.Run(ctx, urls, indicator)
	indicator.Stop()
	summary.Failures = outcome.Failures
	if err != nil {
		return summary, fmt.Errorf("scrape precincts: %w", err)
	}
	if len(outcome.Results) == 0 && len(outcome.Failures) > 0 {
		return summary, fmt.Errorf("scrape precincts: all %d precincts failed: %w",
			len(outcome.Failures), outcome.Failures[0].Err)
	}

	wr := writer.New(local.New(0), p.confirm, p.logger)
	res, err := wr.Write(ctx, outputPath, outcome.Results)
	summary.State = res.State
	if err != nil {
		return summary, err
	}
	if res.State == writer.StateDone {
		summary.Written = res.Rows
		summary.SHA256 = res.Info.SHA256
	}
	return summary, nil
}

func (p *pipeline) discover(
	ctx context.Context,
	w *worker.Worker,
	districtURL string,
	mode election.DiscoveryMode,
) ([]string, error) {
	page, err := w.Fetch(ctx, districtURL)
	if err != nil {
		return nil, fmt.Errorf("fetch district listing: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &election.ParseError{URL: districtURL, Field: "document", Reason: "unparseable html", Err: err}
	}
	disc, err := discovery.New(discovery.Config{
		BaseURL:         p.cfg.Site.BaseURL,
		DomesticPattern: p.cfg.Site.DomesticPattern,
		AbroadPattern:   p.cfg.Site.AbroadPattern,
	})
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}
	urls, err := disc.Discover(doc, mode)
	if err != nil {
		return nil, fmt.Errorf("discover precincts on %s: %w", districtURL, err)
	}

	evt := progress.New(p.runID, progress.StageDiscoveryDone)
	evt.URL = districtURL
	evt.Count = len(urls)
	p.emitter.Emit(evt)
	p.logger.Info("precincts discovered", zap.Int("count", len(urls)), zap.String("mode", string(mode)))
	return urls, nil
}
