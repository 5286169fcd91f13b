package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/documents"
)

func TestSubmitKeepsJobWhenDispatchFails(t *testing.T) {
	p := newTestPipeline(t)
	p.dispatcher.err = errors.New("queue down")

	doc, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")
	job, err := p.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, doc.ID, job.DocumentID)
	assert.Equal(t, 1, job.Attempt)
}

func TestSubmitRejectsSecondActiveJob(t *testing.T) {
	p := newTestPipeline(t)
	doc, _ := p.upload(t, "42", "notes.txt", "text/plain", "notes")

	_, err := p.svc.Submit(context.Background(), doc)
	assert.ErrorIs(t, err, ErrJobInProgress)
}

func TestLatestJob(t *testing.T) {
	p := newTestPipeline(t)
	_, err := p.svc.LatestJob(context.Background(), "nope")
	assert.ErrorIs(t, err, documents.ErrNotFound)

	doc, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")
	summary, err := p.svc.LatestJob(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, jobID, summary.ID)
	assert.Equal(t, "pending", summary.Status)
}

func TestRetryCreatesNewAttempt(t *testing.T) {
	p := newTestPipeline(t)
	p.categorizer.CategorizeFunc = func(context.Context, categorize.Input) (categorize.Category, error) {
		return "", categorize.ErrCategorizerUnavailable
	}
	doc, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")
	failed := p.run(t, jobID)
	require.Equal(t, StatusFailed, failed.Status)

	retry, err := p.svc.Retry(context.Background(), jobID)
	require.NoError(t, err)
	assert.NotEqual(t, jobID, retry.ID)
	assert.Equal(t, StatusPending, retry.Status)
	assert.Equal(t, 2, retry.Attempt)
	assert.Equal(t, jobID, retry.RetryOf)
	assert.Equal(t, doc.ID, retry.DocumentID)
	assert.Equal(t, []string{jobID, retry.ID}, p.dispatcher.dispatched())

	// The failed job keeps its record.
	original, err := p.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, failed, original)

	// A second retry of the same failed job while the new one is active is refused.
	_, err = p.svc.Retry(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrJobInProgress)

	jobs, err := p.svc.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, retry.ID, jobs[0].ID)
}

func TestRetryRefusesSupersededAndUnfailedJobs(t *testing.T) {
	p := newTestPipeline(t)
	fail := true
	p.categorizer.CategorizeFunc = func(context.Context, categorize.Input) (categorize.Category, error) {
		if fail {
			return "", categorize.ErrCategorizerUnavailable
		}
		return categorize.Finance, nil
	}
	_, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")
	p.run(t, jobID)

	fail = false
	retry, err := p.svc.Retry(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.run(t, retry.ID).Status)

	_, err = p.svc.Retry(context.Background(), retry.ID)
	assert.ErrorIs(t, err, ErrNotRetryable)
	_, err = p.svc.Retry(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrNotRetryable)
	_, err = p.svc.Retry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetryRefusesDeletedDocument(t *testing.T) {
	p := newTestPipeline(t)
	doc, jobID := p.upload(t, "42", "notes.txt", "text/plain", "notes")
	require.NoError(t, p.docs.SoftDelete(context.Background(), doc.ID, time.Now().UTC()))
	require.Equal(t, KindDocumentDeleted, p.run(t, jobID).ErrorKind)

	_, err := p.svc.Retry(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrDocumentDeleted)

	_, err = p.svc.ListByDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestListFiltersByStatusAndProject(t *testing.T) {
	p := newTestPipeline(t)
	p.categorizer.CategorizeFunc = always(categorize.Finance)
	_, a := p.upload(t, "42", "a.txt", "text/plain", "a")
	p.upload(t, "42", "b.txt", "text/plain", "b")
	p.upload(t, "43", "c.txt", "text/plain", "c")
	p.run(t, a)

	jobs, err := p.svc.List(context.Background(), ListFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = p.svc.List(context.Background(), ListFilter{ProjectID: "42"})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = p.svc.List(context.Background(), ListFilter{Status: StatusCompleted, ProjectID: "42"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, a, jobs[0].ID)

	_, err = p.svc.List(context.Background(), ListFilter{Status: "bogus"})
	assert.Error(t, err)
}
