package documents

import (
	"time"

	"docvault-backend/internal/categorize"
)

// StagingPrefix is where accepted uploads wait until the pipeline places them.
const StagingPrefix = "_staging"

// Document represents one uploaded artifact in a project.
// Category, Embedding and StorageKey stay empty until ingestion completes.
type Document struct {
	ID              string
	ProjectID       string
	UploadedBy      string
	FileName        string
	ContentType     string
	SizeBytes       int64
	StorageProvider string
	StagingKey      string
	Category        categorize.Category
	Embedding       []float32
	StorageKey      string
	CreatedAt       time.Time
	DeletedAt       *time.Time
}

// Deleted reports whether the document was soft-deleted.
func (d Document) Deleted() bool {
	return d.DeletedAt != nil
}

// Categorized reports whether a category has been assigned.
func (d Document) Categorized() bool {
	return d.Category != ""
}

// ObjectKey returns the key the document bytes can currently be read from.
func (d Document) ObjectKey() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.StagingKey
}

// StagingKeyFor builds the staging key for an upload.
func StagingKeyFor(documentID, fileName string) string {
	return StagingPrefix + "/" + documentID + "/" + fileName
}

// Chunk is one embedded text window of a completed document.
type Chunk struct {
	Index     int
	Content   string
	WordCount int
	Embedding []float32
}

// JobSummary is the slice of ingestion state shown alongside a document.
type JobSummary struct {
	ID          string
	Status      string
	Attempt     int
	FailedStage string
	ErrorKind   string
	UpdatedAt   time.Time
}

// ListFilter narrows a project listing. Uncategorized selects documents with
// no category and takes precedence over Category.
type ListFilter struct {
	Category      categorize.Category
	Uncategorized bool
	Limit         int
	Offset        int
}
