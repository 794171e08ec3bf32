// Package scan feeds files from disk to the extract and junit engines with
// a bounded worker pool. It enforces the size and content checks the
// engines expect their callers to perform.
package scan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
)

const (
	// DefaultWorkers is the default number of files processed at once.
	DefaultWorkers = 4
	// DefaultMaxBytes is the default per-file ceiling (10 MB).
	DefaultMaxBytes int64 = 10 << 20

	// binarySniffBytes is how much of a console log is checked for NUL
	// bytes before extraction.
	binarySniffBytes = 8000
)

// ErrBinary is recorded when a file contains NUL bytes.
var ErrBinary = errors.New("binary content")

// Options controls a scan.
type Options struct {
	Workers  int
	MaxBytes int64
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Reports analyzes the JUnit reports at paths. Oversize, binary and
// unreadable files are recorded as skipped provenance; the returned error
// is non-nil only when ctx is cancelled. Results are merged in path order.
func Reports(ctx context.Context, a *junit.Analyzer, paths []string, opts Options) (*junit.AnalysisResult, error) {
	opts = opts.withDefaults()
	evals := make([]junit.Evaluation, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readReport(path, opts.MaxBytes)
			if err != nil {
				opts.Logger.Warn("skipping report", "file", path, "reason", err)
				evals[i] = junit.Skipped(path, err.Error())
				return nil
			}
			opts.Logger.Debug("analyzing report", "file", path, "bytes", len(data))
			evals[i] = a.Evaluate(junit.Document{Name: path, Content: data})
			if !evals[i].Provenance.Parsed {
				opts.Logger.Warn("report rejected", "file", path, "reason", evals[i].Provenance.SkipReason)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning reports: %w", err)
	}
	return junit.Combine(evals), nil
}

func readReport(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unreadable: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("unreadable: %w", err)
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("exceeds %d byte limit (%d bytes)", maxBytes, info.Size())
	}

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("unreadable: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("exceeds %d byte limit", maxBytes)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, ErrBinary
	}
	return data, nil
}

// LogResult is the extraction of one console log file.
type LogResult struct {
	File   string          `json:"file"`
	Result *extract.Result `json:"result,omitempty"`
	// Skipped explains why no extraction was made.
	Skipped string `json:"skipped,omitempty"`
	// Clipped is set when only the last MaxBytes of the file were read.
	Clipped bool `json:"clipped,omitempty"`
}

// Logs extracts every console log at paths with the same engine and budget.
// Files larger than MaxBytes are read from their last MaxBytes. Results are
// returned in path order.
func Logs(ctx context.Context, e *extract.Engine, budget extract.BudgetConfig, paths []string, opts Options) ([]LogResult, error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	results := make([]LogResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = extractFile(e, budget, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scanning logs: %w", err)
	}
	return results, nil
}

// Log extracts a single console log file.
func Log(e *extract.Engine, budget extract.BudgetConfig, path string, opts Options) LogResult {
	return extractFile(e, budget, path, opts.withDefaults())
}

func extractFile(e *extract.Engine, budget extract.BudgetConfig, path string, opts Options) LogResult {
	out := LogResult{File: path}
	skip := func(err error) LogResult {
		opts.Logger.Warn("skipping log", "file", path, "reason", err)
		out.Skipped = err.Error()
		return out
	}

	f, err := os.Open(path)
	if err != nil {
		return skip(fmt.Errorf("unreadable: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return skip(fmt.Errorf("unreadable: %w", err))
	}
	if info.IsDir() {
		return skip(errors.New("is a directory"))
	}
	var src io.Reader = f
	if info.Size() > opts.MaxBytes {
		// Start one byte early so a cut that lands exactly on a line
		// boundary keeps its first full line.
		if _, err := f.Seek(info.Size()-opts.MaxBytes-1, io.SeekStart); err != nil {
			return skip(fmt.Errorf("unreadable: %w", err))
		}
		lr := bufio.NewReader(io.LimitReader(f, opts.MaxBytes+1))
		if err := skipPartialLine(lr); err != nil {
			return skip(fmt.Errorf("unreadable: %w", err))
		}
		src = lr
		out.Clipped = true
		opts.Logger.Debug("reading log tail", "file", path, "size", info.Size(), "max_bytes", opts.MaxBytes)
	}

	br := bufio.NewReaderSize(io.LimitReader(src, opts.MaxBytes), binarySniffBytes)
	if sniff, _ := br.Peek(binarySniffBytes); bytes.IndexByte(sniff, 0) >= 0 {
		return skip(ErrBinary)
	}

	res, err := e.ExtractReader(br, budget)
	if err != nil {
		return skip(err)
	}
	opts.Logger.Debug("extracted log", "file", path,
		"input_lines", res.InputLines, "matches", res.Counts.Matches, "emitted", res.TotalLines)
	out.Result = res
	return out
}

// skipPartialLine discards everything up to and including the next newline.
func skipPartialLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}
