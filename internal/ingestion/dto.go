package ingestion

import "time"

// JobResponse is the outward-facing representation of an ingestion job.
type JobResponse struct {
	JobID              string     `json:"jobId"`
	DocumentID         string     `json:"documentId"`
	ProjectID          string     `json:"projectId"`
	Status             string     `json:"status"`
	Attempt            int        `json:"attempt"`
	RetryOf            string     `json:"retryOf,omitempty"`
	FailedStage        string     `json:"failedStage,omitempty"`
	ErrorKind          string     `json:"errorKind,omitempty"`
	ErrorDetail        string     `json:"errorDetail,omitempty"`
	ExtractionMethod   string     `json:"extractionMethod,omitempty"`
	ExtractionFallback bool       `json:"extractionFallback"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	FinishedAt         *time.Time `json:"finishedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func toResponse(job Job) JobResponse {
	return JobResponse{
		JobID:              job.ID,
		DocumentID:         job.DocumentID,
		ProjectID:          job.ProjectID,
		Status:             string(job.Status),
		Attempt:            job.Attempt,
		RetryOf:            job.RetryOf,
		FailedStage:        string(job.FailedStage),
		ErrorKind:          string(job.ErrorKind),
		ErrorDetail:        job.ErrorDetail,
		ExtractionMethod:   job.ExtractionMethod,
		ExtractionFallback: job.ExtractionFallback,
		StartedAt:          job.StartedAt,
		FinishedAt:         job.FinishedAt,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
	}
}

func toResponses(jobs []Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toResponse(job))
	}
	return out
}
