package ingestion

import (
	"time"

	"docvault-backend/internal/documents"
)

// Status is the state of an ingestion job.
type Status string

const (
	StatusPending      Status = "pending"
	StatusExtracting   Status = "extracting"
	StatusEmbedding    Status = "embedding"
	StatusCategorizing Status = "categorizing"
	StatusStoring      Status = "storing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var statusOrder = map[Status]int{
	StatusPending:      0,
	StatusExtracting:   1,
	StatusEmbedding:    2,
	StatusCategorizing: 3,
	StatusStoring:      4,
	StatusCompleted:    5,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusFailed
}

// CanTransition reports whether from -> to is allowed: one step forward
// through the pipeline, or to Failed from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return from.Valid()
	}
	fromIdx, ok := statusOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := statusOrder[to]
	return ok && toIdx == fromIdx+1
}

// Stage names the pipeline step a failure happened in.
type Stage string

const (
	StagePending      Stage = "Pending"
	StageExtracting   Stage = "Extracting"
	StageEmbedding    Stage = "Embedding"
	StageCategorizing Stage = "Categorizing"
	StageStoring      Stage = "Storing"
)

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	KindExtractionError         ErrorKind = "ExtractionError"
	KindEmbeddingUnavailable    ErrorKind = "EmbeddingUnavailable"
	KindInvalidCategoryResponse ErrorKind = "InvalidCategoryResponse"
	KindCategorizerUnavailable  ErrorKind = "CategorizerUnavailable"
	KindStorageKeyCollision     ErrorKind = "StorageKeyCollision"
	KindStorageUnavailable      ErrorKind = "StorageUnavailable"
	KindDocumentDeleted         ErrorKind = "DocumentDeleted"
	KindInternal                ErrorKind = "Internal"
)

// Job is one run of the pipeline against one document.
type Job struct {
	ID                 string
	DocumentID         string
	ProjectID          string
	Status             Status
	Attempt            int
	RetryOf            string
	FailedStage        Stage
	ErrorKind          ErrorKind
	ErrorDetail        string
	ExtractionMethod   string
	ExtractionFallback bool
	StartedAt          *time.Time
	FinishedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Failure is what gets recorded on a job that moves to Failed.
type Failure struct {
	Stage  Stage
	Kind   ErrorKind
	Detail string
}

// Result is committed to the document together with the Completed status.
type Result struct {
	DocumentID string
	Category   string
	Embedding  []float32
	StorageKey string
	// Chunks replace whatever chunks the document had before.
	Chunks []documents.Chunk
}

// ListFilter narrows job listings. Zero values match everything.
type ListFilter struct {
	Status    Status
	ProjectID string
	Limit     int
	Offset    int
}
