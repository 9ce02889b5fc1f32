package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Extraction is one stored extraction result. The document and its warnings
// are kept as the JSON the extractor produced.
type Extraction struct {
	ID           string
	SourceName   string
	SHA256       string
	CreatedAt    time.Time
	CVJSON       string
	WarningsJSON string // JSON array stored as text
}

// Job type names.
const (
	JobExtractFile = "extract_file"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
	ResultID    string // extraction id once completed
}
