package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent opens the same on-disk database twice and checks
// that no migration is applied a second time.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) || len(v1) != 2 {
		t.Errorf("migrations: first %v, second %v", v1, v2)
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_extractions_sha256", "idx_extractions_created", "idx_jobs_status_run_after"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestSaveAndGetExtraction(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	want := Extraction{
		ID:           "ext-001",
		SourceName:   "sarah.docx",
		SHA256:       "abc123",
		CreatedAt:    now,
		CVJSON:       `{"overview":"hi"}`,
		WarningsJSON: `[{"code":"no_identity","message":"x"}]`,
	}
	if err := s.SaveExtraction(want); err != nil {
		t.Fatalf("SaveExtraction: %v", err)
	}

	got, err := s.GetExtraction("ext-001")
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if got.SourceName != want.SourceName || got.SHA256 != want.SHA256 {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.CVJSON != want.CVJSON || got.WarningsJSON != want.WarningsJSON {
		t.Errorf("JSON columns = %q %q", got.CVJSON, got.WarningsJSON)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSaveExtractionDefaults(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveExtraction(Extraction{ID: "e", SourceName: "a.docx", SHA256: "h", CVJSON: "{}"}); err != nil {
		t.Fatalf("SaveExtraction: %v", err)
	}
	got, err := s.GetExtraction("e")
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if got.WarningsJSON != "[]" {
		t.Errorf("WarningsJSON = %q, want []", got.WarningsJSON)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestGetExtractionNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetExtraction("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindExtractionBySHA("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindExtractionBySHA error = %v, want ErrNotFound", err)
	}
}

func TestListAndFindExtractions(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		e := Extraction{
			ID:         fmt.Sprintf("ext-%d", i),
			SourceName: fmt.Sprintf("cv%d.docx", i),
			SHA256:     fmt.Sprintf("sha-%d", i%2),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			CVJSON:     "{}",
		}
		if err := s.SaveExtraction(e); err != nil {
			t.Fatalf("SaveExtraction: %v", err)
		}
	}

	list, err := s.ListExtractions(3)
	if err != nil {
		t.Fatalf("ListExtractions: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 results, got %d", len(list))
	}
	for i, want := range []string{"ext-4", "ext-3", "ext-2"} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].ID, want)
		}
	}

	found, err := s.FindExtractionBySHA("sha-1")
	if err != nil {
		t.Fatalf("FindExtractionBySHA: %v", err)
	}
	if found.ID != "ext-3" {
		t.Errorf("FindExtractionBySHA = %q, want newest ext-3", found.ID)
	}
}

func TestDeleteExtraction(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveExtraction(Extraction{ID: "gone", SourceName: "a.docx", SHA256: "h", CVJSON: "{}"}); err != nil {
		t.Fatalf("SaveExtraction: %v", err)
	}
	if err := s.DeleteExtraction("gone"); err != nil {
		t.Fatalf("DeleteExtraction: %v", err)
	}
	if _, err := s.GetExtraction("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: %v, want ErrNotFound", err)
	}
	if err := s.DeleteExtraction("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j-claim-1", Type: JobExtractFile, PayloadJSON: `{"path":"/tmp/cv.docx"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{JobExtractFile})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j-claim-1" || got.Type != JobExtractFile || got.PayloadJSON != job.PayloadJSON {
		t.Errorf("claimed %+v", got)
	}
	if got.Status != "running" || got.MaxAttempts != 3 {
		t.Errorf("Status = %q MaxAttempts = %d", got.Status, got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob([]string{JobExtractFile})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j-future", Type: JobExtractFile, PayloadJSON: `{}`, RunAfter: time.Now().UTC().Add(time.Hour)}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{JobExtractFile})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilter(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-a", Type: "a", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob a: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "j-b", Type: "b", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob b: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"b"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.Type != "b" {
		t.Errorf("claimed %+v, want type b", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-first", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob first: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "j-second", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob second: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil || got.ID != "j-second" {
		t.Errorf("claimed %+v, want j-second", got)
	}
}

func TestCompleteJobRecordsResult(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-complete", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-complete", "ext-42"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	got, err := s.GetJob("j-complete")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" || got.ResultID != "ext-42" {
		t.Errorf("job = %+v", got)
	}

	if err := s.CompleteJob("missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestFailJob_IncrementsAttempts(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-inc", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	before := time.Now().UTC()
	if err := s.FailJob("j-fail-inc", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := s.GetJob("j-fail-inc")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Attempts != 1 || got.Status != "pending" || got.LastError != "something broke" {
		t.Errorf("job = %+v", got)
	}
	if !got.RunAfter.After(before) {
		t.Errorf("run_after %v should be after %v", got.RunAfter, before)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-max", Type: "x", PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	got, err := s.GetJob("j-fail-max")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "failed" {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if err := s.FailJob("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}
}
