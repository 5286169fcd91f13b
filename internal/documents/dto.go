package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
// An unset category is reported through CategoryState, never as a label.
type DocumentResponse struct {
	DocumentID         string       `json:"documentId"`
	ProjectID          string       `json:"projectId"`
	UploadedBy         string       `json:"uploadedBy"`
	FileName           string       `json:"fileName"`
	ContentType        string       `json:"contentType"`
	SizeBytes          int64        `json:"sizeBytes"`
	Category           *string      `json:"category"`
	CategoryState      string       `json:"categoryState"`
	StorageKey         *string      `json:"storageKey"`
	EmbeddingDimension int          `json:"embeddingDimension"`
	UploadedAt         time.Time    `json:"uploadedAt"`
	LatestJob          *JobResponse `json:"latestJob,omitempty"`
}

// JobResponse summarizes the latest ingestion job of a document.
type JobResponse struct {
	JobID       string    `json:"jobId"`
	Status      string    `json:"status"`
	Attempt     int       `json:"attempt"`
	FailedStage string    `json:"failedStage,omitempty"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ChunkResponse is one text window of a document.
type ChunkResponse struct {
	Index              int    `json:"index"`
	Content            string `json:"content"`
	WordCount          int    `json:"wordCount"`
	EmbeddingDimension int    `json:"embeddingDimension"`
}

// ChunksResponse lists a document's chunks in order.
type ChunksResponse struct {
	DocumentID string          `json:"documentId"`
	ChunkCount int             `json:"chunkCount"`
	Chunks     []ChunkResponse `json:"chunks"`
}

// UploadResponse is returned with 202 Accepted.
type UploadResponse struct {
	DocumentID string `json:"documentId"`
	JobID      string `json:"jobId,omitempty"`
	Status     string `json:"status"`
}

func toChunksResponse(documentID string, chunks []Chunk) ChunksResponse {
	items := make([]ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, ChunkResponse{
			Index:              c.Index,
			Content:            c.Content,
			WordCount:          c.WordCount,
			EmbeddingDimension: len(c.Embedding),
		})
	}
	return ChunksResponse{DocumentID: documentID, ChunkCount: len(items), Chunks: items}
}

func toResponse(doc Document, job *JobSummary) DocumentResponse {
	resp := DocumentResponse{
		DocumentID:         doc.ID,
		ProjectID:          doc.ProjectID,
		UploadedBy:         doc.UploadedBy,
		FileName:           doc.FileName,
		ContentType:        doc.ContentType,
		SizeBytes:          doc.SizeBytes,
		CategoryState:      "uncategorized",
		EmbeddingDimension: len(doc.Embedding),
		UploadedAt:         doc.CreatedAt,
	}
	if doc.Categorized() {
		category := string(doc.Category)
		resp.Category = &category
		resp.CategoryState = "categorized"
	}
	if doc.StorageKey != "" {
		key := doc.StorageKey
		resp.StorageKey = &key
	}
	if job != nil {
		resp.LatestJob = &JobResponse{
			JobID:       job.ID,
			Status:      job.Status,
			Attempt:     job.Attempt,
			FailedStage: job.FailedStage,
			ErrorKind:   job.ErrorKind,
			UpdatedAt:   job.UpdatedAt,
		}
	}
	return resp
}
