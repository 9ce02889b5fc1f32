// Package batch extracts many .docx files in parallel with bounded
// concurrency. A failing file is recorded in its Result and never stops the
// rest of the run.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/metrics"
	"github.com/kalambet/cvextract/internal/storage"
)

const DefaultWorkers = 4

// FileExtractor extracts one file and returns its bytes alongside the result.
type FileExtractor interface {
	ExtractFile(ctx context.Context, path string) (*extract.Result, []byte, error)
}

// Sink persists a successful extraction.
type Sink interface {
	Save(name string, data []byte, res *extract.Result) (storage.Extraction, error)
}

// Item is one planned file.
type Item struct {
	Input  string
	Output string // empty when no output directory was given
}

// Result is the outcome of one Item.
type Result struct {
	Item
	Result       *extract.Result
	ExtractionID string
	Err          error
}

// Runner runs a batch. Sink and Metrics are optional.
type Runner struct {
	Extractor FileExtractor
	Workers   int
	OutDir    string
	Sink      Sink
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Plan expands inputs into the list of files to extract. Directories are
// walked for .docx files, skipping Word lock files (~$name.docx). Each file
// gets an output path <OutDir>/<path relative to its input>.json; colliding
// paths get a numeric suffix.
func (r *Runner) Plan(inputs []string) ([]Item, error) {
	var items []Item
	taken := make(map[string]bool)

	add := func(path, rel string) {
		it := Item{Input: path}
		if r.OutDir != "" {
			it.Output = uniqueOutput(filepath.Join(r.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))), taken)
		}
		items = append(items, it)
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("batch input %s: %w", in, err)
		}
		if !info.IsDir() {
			add(in, filepath.Base(in))
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isDocx(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(in, path)
			if err != nil {
				return err
			}
			add(path, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", in, err)
		}
	}
	return items, nil
}

func isDocx(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".docx") && !strings.HasPrefix(name, "~$")
}

func uniqueOutput(stem string, taken map[string]bool) string {
	out := stem + ".json"
	for n := 2; taken[out]; n++ {
		out = fmt.Sprintf("%s-%d.json", stem, n)
	}
	taken[out] = true
	return out
}

// Run extracts every item with at most Workers files in flight and returns
// one Result per item, in item order.
func (r *Runner) Run(ctx context.Context, items []Item) []Result {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(items))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, it := range items {
		g.Go(func() error {
			res := r.runOne(ctx, it)
			if res.Err != nil {
				logger.Warn("batch file failed", "path", it.Input, "error", res.Err)
				r.Metrics.IncrementBatchFile(metrics.OutcomeFailed)
			} else {
				r.Metrics.IncrementBatchFile(metrics.OutcomeOK)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, it Item) Result {
	out := Result{Item: it}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	res, data, err := r.Extractor.ExtractFile(ctx, it.Input)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = res

	if it.Output != "" {
		if err := writeJSON(it.Output, res); err != nil {
			out.Err = err
			return out
		}
	}
	if r.Sink != nil {
		rec, err := r.Sink.Save(it.Input, data, res)
		if err != nil {
			out.Err = fmt.Errorf("saving %s: %w", it.Input, err)
			return out
		}
		out.ExtractionID = rec.ID
	}
	return out
}

func writeJSON(path string, res *extract.Result) error {
	data, err := json.MarshalIndent(res.CV, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
