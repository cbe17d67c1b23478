package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const defaultIndicatorInterval = 200 * time.Millisecond

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Indicator renders a single-line spinner with a completion count while the
// pool works. It only observes: callers report completions via Completed.
type Indicator struct {
	out      io.Writer
	label    string
	total    int64
	interval time.Duration

	done    atomic.Int64
	frame   int
	started atomic.Bool
	stopCh  chan struct{}
	exited  chan struct{}
	once    sync.Once
}

// NewIndicator builds an indicator for total units of work. A nil out
// disables rendering while still counting.
func NewIndicator(out io.Writer, label string, total int, interval time.Duration) *Indicator {
	if interval <= 0 {
		interval = defaultIndicatorInterval
	}
	return &Indicator{
		out:      out,
		label:    label,
		total:    int64(total),
		interval: interval,
		stopCh:   make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// Completed records one finished unit of work. Safe for concurrent use.
func (i *Indicator) Completed() {
	if i == nil {
		return
	}
	i.done.Add(1)
}

// Count returns the number of completions recorded so far.
func (i *Indicator) Count() int {
	if i == nil {
		return 0
	}
	return int(i.done.Load())
}

// Start launches the render loop. It exits when ctx ends, Stop is called, or
// the count reaches total.
func (i *Indicator) Start(ctx context.Context) {
	if i == nil || !i.started.CompareAndSwap(false, true) {
		return
	}
	go i.loop(ctx)
}

// Stop ends the render loop, writes the final line, and waits for the loop.
func (i *Indicator) Stop() {
	if i == nil {
		return
	}
	i.once.Do(func() { close(i.stopCh) })
	if i.started.Load() {
		<-i.exited
	}
}

func (i *Indicator) loop(ctx context.Context) {
	defer close(i.exited)
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			i.finish()
			return
		case <-i.stopCh:
			i.finish()
			return
		case <-ticker.C:
			i.render()
			if i.done.Load() >= i.total {
				i.finish()
				return
			}
		}
	}
}

func (i *Indicator) render() {
	if i.out == nil {
		return
	}
	frame := spinnerFrames[i.frame%len(spinnerFrames)]
	i.frame++
	fmt.Fprintf(i.out, "\r%s %s %d/%d", frame, i.label, i.done.Load(), i.total)
}

func (i *Indicator) finish() {
	if i.out == nil {
		return
	}
	fmt.Fprintf(i.out, "\r%s %d/%d\n", i.label, i.done.Load(), i.total)
}
