package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/docx"
	"github.com/kalambet/cvextract/internal/docx/docxtest"
	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/metrics"
	"github.com/kalambet/cvextract/internal/storage"
)

func resumeDoc(name string) *docxtest.Doc {
	return docxtest.New(
		docxtest.Para("PROFILE"),
		docxtest.Para("Backend engineer."),
		docxtest.Para("EXPERIENCE"),
		docxtest.Para("2019 - 2023"),
		docxtest.Bullet("Shipped things"),
	).WithHeader("header1.xml", docxtest.Header{Boxes: [][]docxtest.P{{docxtest.Para(name)}}})
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPlan(t *testing.T) {
	in := t.TempDir()
	touch(t, filepath.Join(in, "a.docx"))
	touch(t, filepath.Join(in, "~$a.docx"))
	touch(t, filepath.Join(in, "notes.txt"))
	touch(t, filepath.Join(in, "team", "b.DOCX"))
	single := filepath.Join(t.TempDir(), "a.docx")
	touch(t, single)

	r := &Runner{OutDir: "/out"}
	items, err := r.Plan([]string{in, single})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := []Item{
		{Input: filepath.Join(in, "a.docx"), Output: filepath.Join("/out", "a.json")},
		{Input: filepath.Join(in, "team", "b.DOCX"), Output: filepath.Join("/out", "team", "b.json")},
		{Input: single, Output: filepath.Join("/out", "a-2.json")},
	}
	if len(items) != len(want) {
		t.Fatalf("items = %+v, want %d", items, len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestPlanWithoutOutDir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cv.docx")
	touch(t, p)
	items, err := (&Runner{}).Plan([]string{p})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(items) != 1 || items[0].Output != "" {
		t.Errorf("items = %+v", items)
	}
}

func TestPlanMissingInput(t *testing.T) {
	if _, err := (&Runner{}).Plan([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestRunWritesOutputs(t *testing.T) {
	in := t.TempDir()
	resumeDoc("Ada Lovelace").WriteFile(t, in, "ada.docx")
	resumeDoc("Alan Turing").WriteFile(t, in, "alan.docx")
	if err := os.WriteFile(filepath.Join(in, "broken.docx"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	out := t.TempDir()
	r := &Runner{
		Extractor: ingest.NewService(extract.New(nil), nil, m),
		Workers:   2,
		OutDir:    out,
		Metrics:   m,
	}
	items, err := r.Plan([]string{in})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	results := r.Run(context.Background(), items)

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if Failed(results) != 1 {
		t.Errorf("Failed = %d, want 1", Failed(results))
	}
	// WalkDir visits entries in lexical order.
	names := []string{"Ada Lovelace", "Alan Turing"}
	for i, name := range names {
		res := results[i]
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Input, res.Err)
		}
		data, err := os.ReadFile(res.Output)
		if err != nil {
			t.Fatalf("reading output: %v", err)
		}
		var doc cv.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("output json: %v", err)
		}
		if doc.Identity.FullName != name {
			t.Errorf("%s: name = %q, want %q", res.Output, doc.Identity.FullName, name)
		}
	}
	if !errors.Is(results[2].Err, docx.ErrCorruptArchive) {
		t.Errorf("broken result err = %v", results[2].Err)
	}
	if _, err := os.Stat(results[2].Output); !os.IsNotExist(err) {
		t.Errorf("failed file should not produce output, stat err = %v", err)
	}

	if got := testutil.ToFloat64(m.BatchFiles.WithLabelValues(metrics.OutcomeOK)); got != 2 {
		t.Errorf("ok batch files = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BatchFiles.WithLabelValues(metrics.OutcomeFailed)); got != 1 {
		t.Errorf("failed batch files = %v, want 1", got)
	}
}

func TestRunSavesToSink(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	in := t.TempDir()
	p := resumeDoc("Grace Hopper").WriteFile(t, in, "grace.docx")
	svc := ingest.NewService(extract.New(nil), store, nil)
	r := &Runner{Extractor: svc, Sink: svc}

	results := r.Run(context.Background(), []Item{{Input: p}})
	if results[0].Err != nil {
		t.Fatalf("Run: %v", results[0].Err)
	}
	rec, err := store.GetExtraction(results[0].ExtractionID)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if rec.SourceName != "grace.docx" {
		t.Errorf("SourceName = %q", rec.SourceName)
	}
}

type slowExtractor struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (s *slowExtractor) ExtractFile(ctx context.Context, path string) (*extract.Result, []byte, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxSeen.Load()
		if n <= cur || s.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.mu.Lock()
	s.seen = append(s.seen, path)
	s.mu.Unlock()
	if strings.HasPrefix(filepath.Base(path), "bad") {
		return nil, nil, errors.New("boom")
	}
	doc := cv.Empty()
	doc.Identity.FullName = path
	return &extract.Result{CV: doc, Warnings: []extract.Warning{}}, nil, nil
}

func TestRunBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	ex := &slowExtractor{}
	r := &Runner{Extractor: ex, Workers: 3}

	var items []Item
	for _, name := range []string{"a", "bad1", "c", "d", "e", "bad2", "g", "h"} {
		items = append(items, Item{Input: name})
	}
	results := r.Run(context.Background(), items)

	if got := ex.maxSeen.Load(); got > 3 {
		t.Errorf("max in flight = %d, want <= 3", got)
	}
	if len(ex.seen) != len(items) {
		t.Errorf("processed %d files, want %d", len(ex.seen), len(items))
	}
	for i, res := range results {
		if res.Input != items[i].Input {
			t.Errorf("result %d is for %q, want %q", i, res.Input, items[i].Input)
		}
		bad := strings.HasPrefix(res.Input, "bad")
		if bad != (res.Err != nil) {
			t.Errorf("%s: err = %v", res.Input, res.Err)
		}
		if !bad && res.Result.CV.Identity.FullName != res.Input {
			t.Errorf("%s: result belongs to %q", res.Input, res.Result.CV.Identity.FullName)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := (&Runner{Extractor: &slowExtractor{}}).Run(ctx, []Item{{Input: "a"}, {Input: "b"}})
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", res.Input, res.Err)
		}
	}
}
