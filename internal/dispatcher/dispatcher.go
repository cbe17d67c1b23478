// Package dispatcher fans precinct URLs out to a fixed pool of workers and
// collects their outcomes back into discovery order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/logging"
	"github.com/JakeFAU/elections-scraper/internal/progress"
	"github.com/JakeFAU/elections-scraper/internal/queue/memory"
)

// DefaultConcurrency is the pool size used when Config.Concurrency is unset.
const DefaultConcurrency = 8

// ErrNotProcessed marks URLs that never reached a worker because the run ended.
var ErrNotProcessed = errors.New("precinct not processed")

// Processor handles one precinct. worker.Worker satisfies it.
type Processor interface {
	Process(ctx context.Context, index int, rawURL string) (election.PrecinctResult, error)
}

// Observer is told about every finished precinct, success or not.
type Observer interface {
	Completed()
}

// Config controls pool size and failure handling.
type Config struct {
	Concurrency int
	Mode        election.FailureMode
	RunID       uuid.UUID
}

// Dispatcher runs a bounded pool over a list of URLs.
type Dispatcher struct {
	proc    Processor
	cfg     Config
	emitter progress.Emitter
	logger  *zap.Logger
}

type job struct {
	index int
	url   string
}

type outcome struct {
	job
	result election.PrecinctResult
	err    error
}

type slot struct {
	done   bool
	result election.PrecinctResult
	err    error
}

// New creates a Dispatcher.
func New(proc Processor, cfg Config, emitter progress.Emitter, logger *zap.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Mode == "" {
		cfg.Mode = election.ModeStrict
	}
	if emitter == nil {
		emitter = progress.Nop{}
	}
	logger = logging.OrNop(logger)
	return &Dispatcher{
		proc:    proc,
		cfg:     cfg,
		emitter: emitter,
		logger:  logger.Named("dispatcher"),
	}
}

// Run processes urls and returns results in the order of urls.
//
// In strict mode the first failure cancels outstanding work and is returned
// with an empty Outcome. In partial mode every failure is collected into
// Outcome.Failures; if ctx ends early, unprocessed URLs are reported as
// failures wrapping ErrNotProcessed and the context error is returned next to
// the partial Outcome.
func (d *Dispatcher) Run(ctx context.Context, urls []string, observer Observer) (election.Outcome, error) {
	if len(urls) == 0 {
		return election.Outcome{}, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := memory.NewQueue[job](len(urls))
	for i, u := range urls {
		if err := jobs.Enqueue(runCtx, job{index: i, url: u}); err != nil {
			return election.Outcome{}, fmt.Errorf("enqueue precinct %d: %w", i, err)
		}
	}
	jobs.Close()

	workers := min(d.cfg.Concurrency, len(urls))
	outcomes := make(chan outcome, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(runCtx, jobs, outcomes)
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	slots := make([]slot, len(urls))
	var firstErr error
	for o := range outcomes {
		if observer != nil {
			observer.Completed()
		}
		slots[o.index] = slot{done: true, result: o.result, err: o.err}
		d.emitOutcome(o)
		if o.err == nil {
			continue
		}
		if d.cfg.Mode == election.ModeStrict && firstErr == nil {
			firstErr = fmt.Errorf("precinct %d (%s): %w", o.index, o.url, o.err)
			d.logger.Warn("aborting run on first failure",
				zap.Int("index", o.index),
				zap.String("url", o.url),
				zap.String("kind", election.KindOf(o.err)),
				zap.Error(o.err),
			)
			cancel()
		}
	}

	if d.cfg.Mode == election.ModeStrict {
		return d.strictOutcome(ctx, urls, slots, firstErr)
	}
	return d.partialOutcome(ctx, urls, slots)
}

func (d *Dispatcher) work(ctx context.Context, jobs *memory.Queue[job], outcomes chan<- outcome) {
	for {
		j, err := jobs.Dequeue(ctx)
		if err != nil {
			return
		}
		result, err := d.proc.Process(ctx, j.index, j.url)
		outcomes <- outcome{job: j, result: result, err: err}
	}
}

func (d *Dispatcher) strictOutcome(
	ctx context.Context,
	urls []string,
	slots []slot,
	firstErr error,
) (election.Outcome, error) {
	if err := ctx.Err(); err != nil && (firstErr == nil || causedByContext(firstErr)) {
		return election.Outcome{}, fmt.Errorf("run canceled: %w", err)
	}
	if firstErr != nil {
		return election.Outcome{}, firstErr
	}
	results := make([]election.PrecinctResult, 0, len(slots))
	for _, s := range slots {
		results = append(results, s.result)
	}
	if dups := duplicateCodes(urls, results); len(dups) > 0 {
		return election.Outcome{}, dups[0].Err
	}
	return election.Outcome{Results: results}, nil
}

// causedByContext reports whether a worker failed only because its context ended.
func causedByContext(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (d *Dispatcher) partialOutcome(ctx context.Context, urls []string, slots []slot) (election.Outcome, error) {
	var (
		out     election.Outcome
		indexes []int
	)
	for i, s := range slots {
		switch {
		case !s.done:
			out.Failures = append(out.Failures, election.Failure{
				Index: i,
				URL:   urls[i],
				Err:   fmt.Errorf("%w: %w", ErrNotProcessed, context.Cause(ctx)),
			})
		case s.err != nil:
			out.Failures = append(out.Failures, election.Failure{Index: i, URL: urls[i], Err: s.err})
		default:
			out.Results = append(out.Results, s.result)
			indexes = append(indexes, i)
		}
	}

	if dups := duplicateCodes(pick(urls, indexes), out.Results); len(dups) > 0 {
		drop := make(map[int]bool, len(dups))
		for _, dup := range dups {
			drop[dup.Index] = true
			dup.Index = indexes[dup.Index]
			out.Failures = append(out.Failures, dup)
		}
		kept := out.Results[:0]
		for i, r := range out.Results {
			if !drop[i] {
				kept = append(kept, r)
			}
		}
		out.Results = kept
		sort.Slice(out.Failures, func(a, b int) bool { return out.Failures[a].Index < out.Failures[b].Index })
	}

	if len(out.Failures) > 0 {
		d.logger.Warn("run finished with failures",
			zap.Int("results", len(out.Results)),
			zap.Int("failures", len(out.Failures)),
		)
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("run canceled: %w", err)
	}
	return out, nil
}

// duplicateCodes reports every record whose code already appeared earlier in
// results. Failure.Index is the position within results.
func duplicateCodes(urls []string, results []election.PrecinctResult) []election.Failure {
	seen := make(map[string]int, len(results))
	var dups []election.Failure
	for i, r := range results {
		first, ok := seen[r.Code]
		if !ok {
			seen[r.Code] = i
			continue
		}
		dups = append(dups, election.Failure{
			Index: i,
			URL:   urls[i],
			Err: &election.ParseError{
				URL:    urls[i],
				Field:  "code",
				Reason: fmt.Sprintf("code %s already produced by %s", r.Code, urls[first]),
				Err:    election.ErrDuplicateCode,
			},
		})
	}
	return dups
}

func pick(urls []string, indexes []int) []string {
	out := make([]string, len(indexes))
	for i, idx := range indexes {
		out[i] = urls[idx]
	}
	return out
}

func (d *Dispatcher) emitOutcome(o outcome) {
	if o.err != nil {
		evt := progress.New(d.cfg.RunID, progress.StagePrecinctError)
		evt.Index = o.index
		evt.URL = o.url
		evt.ErrKind = election.KindOf(o.err)
		evt.Note = o.err.Error()
		d.emitter.Emit(evt)
		return
	}
	evt := progress.New(d.cfg.RunID, progress.StagePrecinctDone)
	evt.Index = o.index
	evt.URL = o.url
	evt.Code = o.result.Code
	d.emitter.Emit(evt)
}
