package writer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Confirmer asks whether an existing file may be overwritten and returns the
// raw answer.
type Confirmer interface {
	Confirm(ctx context.Context, path string) (string, error)
}

// AlwaysConfirm answers "y" without asking.
type AlwaysConfirm struct{}

// Confirm implements Confirmer.
func (AlwaysConfirm) Confirm(context.Context, string) (string, error) {
	return "y", nil
}

// PromptConfirmer asks on out and reads one line from in.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptConfirmer builds a PromptConfirmer, typically over stdin/stderr.
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

type answer struct {
	line string
	err  error
}

// Confirm implements Confirmer. A read that hits EOF returns whatever was
// typed so far; an empty answer is left to the caller to reject.
func (p *PromptConfirmer) Confirm(ctx context.Context, path string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "File %s already exists. Overwrite? [y/n]: ", path); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		ch <- answer{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("prompt canceled: %w", ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return "", fmt.Errorf("read answer: %w", a.err)
		}
		return a.line, nil
	}
}
