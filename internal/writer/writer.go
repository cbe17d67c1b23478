// Package writer renders precinct records as CSV and saves them, asking before
// an existing file is replaced.
package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/elections-scraper/internal/election"
	"github.com/JakeFAU/elections-scraper/internal/logging"
	"github.com/JakeFAU/elections-scraper/internal/storage/local"
)

// Store is the filesystem surface the writer needs. local.FileStore satisfies it.
type Store interface {
	Exists(path string) (bool, error)
	WriteAtomic(ctx context.Context, path string, data io.Reader) (local.Info, error)
}

// Result describes how a Write call ended.
type Result struct {
	State   State
	Path    string
	Columns []string
	Rows    int
	Info    local.Info
}

// Writer drives the overwrite state machine and performs the single write.
type Writer struct {
	store     Store
	confirmer Confirmer
	logger    *zap.Logger
}

// New creates a Writer. A nil confirmer behaves like AlwaysConfirm.
func New(store Store, confirmer Confirmer, logger *zap.Logger) *Writer {
	if confirmer == nil {
		confirmer = AlwaysConfirm{}
	}
	logger = logging.OrNop(logger)
	return &Writer{store: store, confirmer: confirmer, logger: logger.Named("writer")}
}

// Write encodes results and saves them to path. A declined overwrite returns
// StateAbortedByUser and a nil error; an unrecognized answer returns
// StateAbortedInvalidInput and a WriteError wrapping ErrInvalidResponse.
func (w *Writer) Write(ctx context.Context, path string, results []election.PrecinctResult) (Result, error) {
	var buf bytes.Buffer
	columns, err := Encode(&buf, results)
	if err != nil {
		return Result{State: StateFresh, Path: path}, &election.WriteError{Path: path, Op: "encode", Err: err}
	}
	if codes := election.SchemaDivergence(results); len(codes) > 0 {
		w.logger.Warn("precincts list differing party sets; missing values left empty",
			zap.Strings("codes", codes),
		)
	}

	res := Result{State: StateFresh, Path: path, Columns: columns, Rows: len(results)}
	exists, err := w.store.Exists(path)
	if err != nil {
		return res, &election.WriteError{Path: path, Op: "stat", Err: err}
	}
	if exists {
		res.State, err = w.confirm(ctx, path)
		if res.State != StateDone {
			return res, err
		}
	}

	info, err := w.store.WriteAtomic(ctx, path, &buf)
	if err != nil {
		return res, &election.WriteError{Path: path, Op: "write", Err: err}
	}
	res.State = StateDone
	res.Info = info
	w.logger.Info("results written",
		zap.String("path", path),
		zap.Int("rows", res.Rows),
		zap.Int("columns", len(columns)),
		zap.String("sha256", info.SHA256),
	)
	return res, nil
}

func (w *Writer) confirm(ctx context.Context, path string) (State, error) {
	raw, err := w.confirmer.Confirm(ctx, path)
	if err != nil {
		return StateExistsPrompt, &election.WriteError{Path: path, Op: "confirm overwrite", Err: err}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y":
		return StateDone, nil
	case "n":
		w.logger.Info("overwrite declined", zap.String("path", path))
		return StateAbortedByUser, nil
	default:
		return StateAbortedInvalidInput, &election.WriteError{
			Path: path,
			Op:   "confirm overwrite",
			Err:  fmt.Errorf("%w: %q", election.ErrInvalidResponse, strings.TrimSpace(raw)),
		}
	}
}

// Encode writes the CSV table for results to out and returns the header. The
// party columns are the union of party names in first-seen order; a precinct
// without a given party gets an empty cell.
func Encode(out io.Writer, results []election.PrecinctResult) ([]string, error) {
	columns := append(append([]string(nil), election.FixedColumns...), election.PartyUnion(results)...)
	cw := csv.NewWriter(out)
	if err := cw.Write(columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	parties := columns[len(election.FixedColumns):]
	row := make([]string, len(columns))
	for _, r := range results {
		row[0], row[1], row[2], row[3], row[4] = r.Code, r.Location, r.Registered, r.Envelopes, r.Valid
		for i, name := range parties {
			votes, _ := r.Parties.Get(name)
			row[len(election.FixedColumns)+i] = votes
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("write row %s: %w", r.Code, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return columns, nil
}
