// Package ingest runs extractions on behalf of the CLI, the HTTP and MCP
// servers and the background job worker, recording metrics and persisting
// results.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/metrics"
	"github.com/kalambet/cvextract/internal/storage"
)

// Extractor turns document bytes into a CV.
type Extractor interface {
	ExtractBytes(ctx context.Context, name string, data []byte) (*extract.Result, error)
}

// ExtractionSaver persists extraction results.
type ExtractionSaver interface {
	SaveExtraction(e storage.Extraction) error
}

// Service wraps an Extractor with metrics and optional persistence.
type Service struct {
	extractor Extractor
	store     ExtractionSaver
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService returns a Service. store and m may be nil.
func NewService(ex Extractor, store ExtractionSaver, m *metrics.Metrics) *Service {
	return &Service{
		extractor: ex,
		store:     store,
		metrics:   m,
		logger:    slog.Default(),
	}
}

// Extract runs one extraction and records its outcome.
func (s *Service) Extract(ctx context.Context, name string, data []byte) (*extract.Result, error) {
	start := time.Now()
	res, err := s.extractor.ExtractBytes(ctx, name, data)

	var codes []string
	if res != nil {
		for _, w := range res.Warnings {
			codes = append(codes, w.Code)
		}
	}
	s.metrics.ObserveExtraction(time.Since(start), codes, err)

	if err != nil {
		s.logger.Warn("extraction failed", "name", name, "error", err)
		return nil, err
	}
	return res, nil
}

// ExtractFile reads path and extracts it.
func (s *Service) ExtractFile(ctx context.Context, path string) (*extract.Result, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &extract.Error{Path: path, Op: "open", Err: err}
	}
	res, err := s.Extract(ctx, path, data)
	return res, data, err
}

// ExtractAndSave extracts data and stores the result under a new id.
func (s *Service) ExtractAndSave(ctx context.Context, name string, data []byte) (storage.Extraction, *extract.Result, error) {
	res, err := s.Extract(ctx, name, data)
	if err != nil {
		return storage.Extraction{}, nil, err
	}
	rec, err := s.Save(name, data, res)
	return rec, res, err
}

// Save persists res, extracted from data, under a new id.
func (s *Service) Save(name string, data []byte, res *extract.Result) (storage.Extraction, error) {
	if s.store == nil {
		return storage.Extraction{}, fmt.Errorf("no extraction store configured")
	}
	rec, err := NewRecord(name, data, res)
	if err != nil {
		return storage.Extraction{}, err
	}
	if err := s.store.SaveExtraction(rec); err != nil {
		return storage.Extraction{}, fmt.Errorf("saving extraction: %w", err)
	}
	s.logger.Info("extraction saved", "id", rec.ID, "source", rec.SourceName)
	return rec, nil
}

// NewRecord builds the stored form of an extraction. The source name keeps
// only the base name of a path.
func NewRecord(name string, data []byte, res *extract.Result) (storage.Extraction, error) {
	cvJSON, err := json.Marshal(res.CV)
	if err != nil {
		return storage.Extraction{}, fmt.Errorf("encoding cv: %w", err)
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []extract.Warning{}
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return storage.Extraction{}, fmt.Errorf("encoding warnings: %w", err)
	}
	sum := sha256.Sum256(data)
	return storage.Extraction{
		ID:           uuid.New().String(),
		SourceName:   filepath.Base(name),
		SHA256:       hex.EncodeToString(sum[:]),
		CreatedAt:    time.Now().UTC(),
		CVJSON:       string(cvJSON),
		WarningsJSON: string(warnJSON),
	}, nil
}
