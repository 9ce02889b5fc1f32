package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/cvextract/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id, resultID string) error
	FailJob(id string, errMsg string) error
}

// FilePayload is the payload of an extract_file job.
type FilePayload struct {
	Path string `json:"path"`
}

// Worker processes extract_file jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	service *Service
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. The service must have an extraction store.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, service *Service, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		service: service,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single extract_file job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{storage.JobExtractFile})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	resultID, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID, resultID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("job completed", "job_id", job.ID, "extraction_id", resultID)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload FilePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}
	if payload.Path == "" {
		return "", fmt.Errorf("payload has no path")
	}

	res, data, err := w.service.ExtractFile(ctx, payload.Path)
	if err != nil {
		return "", err
	}
	rec, err := w.service.Save(payload.Path, data, res)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}
