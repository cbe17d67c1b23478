// Package worker turns one precinct URL into one record: fetch with retries,
// parse, extract.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/logging"
	"github.com/JakeFAU/elections-scraper/internal/progress"
)

const tracerName = "github.com/JakeFAU/elections-scraper/internal/worker"

// Extractor converts a parsed precinct page into a record.
type Extractor interface {
	Extract(doc *goquery.Document, pageURL string) (election.PrecinctResult, error)
}

// Config carries the run-scoped values a Worker stamps on its events.
type Config struct {
	RunID uuid.UUID
	Retry election.RetryPolicy
}

// Worker processes a single precinct URL per call and holds no per-call state,
// so one Worker may be shared by every goroutine of a pool.
type Worker struct {
	fetcher   election.Fetcher
	extractor Extractor
	retry     election.RetryPolicy
	emitter   progress.Emitter
	runID     uuid.UUID
	tracer    trace.Tracer
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New constructs a Worker. A nil retry policy disables retries and a nil
// emitter discards events.
func New(
	fetcher election.Fetcher,
	extractor Extractor,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	logger = logging.OrNop(logger)
	if emitter == nil {
		emitter = progress.Nop{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = election.NoRetry{}
	}
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		retry:     retry,
		emitter:   emitter,
		runID:     cfg.RunID,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.Named("worker"),
		sleep:     sleepContext,
	}
}

// Process fetches, parses and extracts the precinct at rawURL. index is the
// URL's position in discovery order and is only used for events and logs.
func (w *Worker) Process(ctx context.Context, index int, rawURL string) (election.PrecinctResult, error) {
	ctx, span := w.tracer.Start(ctx, "precinct.process", trace.WithAttributes(
		attribute.Int("precinct.index", index),
		attribute.String("precinct.url", rawURL),
	))
	defer span.End()

	result, err := w.process(ctx, index, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, election.KindOf(err))
		return election.PrecinctResult{}, err
	}
	span.SetAttributes(attribute.String("precinct.code", result.Code))
	return result, nil
}

// Fetch retrieves a page that is not a precinct, such as the district listing,
// under the same retry policy. Its FETCH_DONE events carry index -1.
func (w *Worker) Fetch(ctx context.Context, rawURL string) (election.Page, error) {
	return w.fetchWithRetry(ctx, -1, rawURL)
}

func (w *Worker) process(ctx context.Context, index int, rawURL string) (election.PrecinctResult, error) {
	page, err := w.fetchWithRetry(ctx, index, rawURL)
	if err != nil {
		return election.PrecinctResult{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return election.PrecinctResult{}, &election.ParseError{URL: rawURL, Field: "document", Reason: "unparseable html", Err: err}
	}

	result, err := w.extractor.Extract(doc, rawURL)
	if err != nil {
		return election.PrecinctResult{}, fmt.Errorf("extract: %w", err)
	}
	w.logger.Debug("precinct extracted",
		zap.Int("index", index),
		zap.String("code", result.Code),
		zap.Int("parties", len(result.Parties)),
	)
	return result, nil
}

func (w *Worker) fetchWithRetry(ctx context.Context, index int, rawURL string) (election.Page, error) {
	for attempt := 1; ; attempt++ {
		page, err := w.fetcher.Fetch(ctx, rawURL)
		w.emitFetch(index, rawURL, attempt, page, err)
		if err == nil {
			return page, nil
		}
		retries := attempt - 1
		if !w.retry.ShouldRetry(err, retries) {
			return election.Page{}, wrapFetchError(rawURL, err)
		}
		delay := w.retry.Backoff(retries)
		w.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
			return election.Page{}, wrapFetchError(rawURL, err)
		}
	}
}

func (w *Worker) emitFetch(index int, rawURL string, attempt int, page election.Page, err error) {
	evt := progress.New(w.runID, progress.StageFetchDone)
	evt.Index = index
	evt.URL = rawURL
	evt.Attempt = attempt
	evt.Dur = page.Duration
	evt.Bytes = int64(page.ContentLength())
	evt.StatusClass = progress.ClassifyStatus(page.StatusCode)
	var fetchErr *election.FetchError
	if errors.As(err, &fetchErr) {
		evt.StatusClass = progress.ClassifyStatus(fetchErr.StatusCode)
		evt.ErrKind = election.KindOf(err)
	}
	w.emitter.Emit(evt)
}

// wrapFetchError passes FetchErrors through and classifies anything else the
// fetcher returns as unknown.
func wrapFetchError(rawURL string, err error) error {
	var fetchErr *election.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return &election.FetchError{Kind: election.KindUnknown, URL: rawURL, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
