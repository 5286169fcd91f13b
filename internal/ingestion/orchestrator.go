// Package ingestion runs the document pipeline: extraction, embedding,
// categorization and placement, tracked by an IngestionJob state machine.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/chunking"
	"docvault-backend/internal/documents"
	"docvault-backend/internal/embedding"
	"docvault-backend/internal/extract"
	"docvault-backend/internal/placement"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/storage/object"
	"docvault-backend/internal/shared/telemetry"
)

const failWriteTimeout = 10 * time.Second

// Config is the retry policy applied to every retryable stage, plus the
// window used to split extracted text into chunks.
type Config struct {
	MaxAttempts  int
	BackoffBase  time.Duration
	ChunkWords   int
	ChunkOverlap int
	MaxChunks    int
}

// Orchestrator sequences the pipeline stages for one job at a time. It is
// safe for concurrent use; each Run works on a disjoint job.
type Orchestrator struct {
	Jobs        Store
	Docs        documents.Repo
	Objects     object.ObjectStore
	Embedder    embedding.Embedder
	Categorizer categorize.Categorizer
	Placer      *placement.Placer
	Config      Config
	Now         func() time.Time
}

// Runner executes a job by id.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// stageError carries the stage and kind a run failed with.
type stageError struct {
	failure Failure
	err     error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// errAbandoned means the job changed state under the run, usually because it
// was failed elsewhere. The run stops without recording anything.
var errAbandoned = errors.New("job no longer owned by this run")

// Run claims a pending job and drives it to Completed or Failed. Jobs that are
// not pending are skipped, so duplicate dispatches are harmless. Pipeline
// failures are recorded on the job and not returned; the returned error means
// the job store itself could not be reached.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (err error) {
	job, err := o.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		telemetry.Debug("ingestion.skip", map[string]any{"job_id": job.ID, "status": string(job.Status)})
		return nil
	}
	if err := o.Jobs.Transition(ctx, job.ID, StatusPending, StatusExtracting, o.now()); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return err
	}
	job.Status = StatusExtracting
	started := o.now()
	metrics.IncJobsStarted()
	o.logStatus(job, StatusExtracting)

	defer func() {
		if r := recover(); r != nil {
			o.fail(ctx, job, &stageError{
				failure: Failure{Stage: stageFor(job.Status), Kind: KindInternal},
				err:     fmt.Errorf("panic: %v", r),
			})
			err = nil
		}
	}()

	runErr := o.execute(ctx, &job)
	metrics.ObserveJob(o.now().Sub(started))
	if runErr == nil {
		metrics.IncJobsCompleted()
		return nil
	}
	if errors.Is(runErr, errAbandoned) {
		telemetry.Warn("ingestion.abandoned", map[string]any{"job_id": job.ID, "document_id": job.DocumentID})
		return nil
	}
	var se *stageError
	if !errors.As(runErr, &se) {
		se = &stageError{failure: Failure{Stage: stageFor(job.Status), Kind: KindInternal}, err: runErr}
	}
	o.fail(ctx, job, se)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, job *Job) error {
	doc, err := o.Docs.Get(ctx, job.DocumentID)
	if err != nil {
		return &stageError{failure: Failure{Stage: StageExtracting, Kind: KindInternal}, err: fmt.Errorf("load document: %w", err)}
	}
	if doc.Deleted() {
		return &stageError{failure: Failure{Stage: StageExtracting, Kind: KindDocumentDeleted}, err: ErrDocumentDeleted}
	}

	// Extracting
	stageStart := o.now()
	body, text, err := o.extract(ctx, job, doc)
	metrics.ObserveStage(string(StageExtracting), o.now().Sub(stageStart))
	if err != nil {
		return err
	}

	// Embedding
	if err := o.advance(ctx, job, StatusEmbedding); err != nil {
		return err
	}
	stageStart = o.now()
	vector, err := o.embed(ctx, text)
	var chunks []documents.Chunk
	if err == nil && !job.ExtractionFallback {
		chunks, err = o.embedChunks(ctx, text)
	}
	metrics.ObserveStage(string(StageEmbedding), o.now().Sub(stageStart))
	if err != nil {
		return &stageError{failure: Failure{Stage: StageEmbedding, Kind: classify(err)}, err: err}
	}

	// Categorizing
	if err := o.advance(ctx, job, StatusCategorizing); err != nil {
		return err
	}
	// The filename stand-in is for embedding only; the categorizer sees no
	// text and builds its prompt from the filename.
	categorizeText := text
	if job.ExtractionFallback {
		categorizeText = ""
	}
	stageStart = o.now()
	category, err := o.categorize(ctx, categorizeText, doc.FileName, vector)
	metrics.ObserveStage(string(StageCategorizing), o.now().Sub(stageStart))
	if err != nil {
		return &stageError{failure: Failure{Stage: StageCategorizing, Kind: classify(err)}, err: err}
	}

	// A document deleted while the earlier stages ran is not placed.
	current, err := o.Docs.Get(ctx, doc.ID)
	if err != nil {
		return &stageError{failure: Failure{Stage: StageStoring, Kind: KindInternal}, err: fmt.Errorf("reload document: %w", err)}
	}
	if current.Deleted() {
		return &stageError{failure: Failure{Stage: StageStoring, Kind: KindDocumentDeleted}, err: ErrDocumentDeleted}
	}

	// Storing
	if err := o.advance(ctx, job, StatusStoring); err != nil {
		return err
	}
	stageStart = o.now()
	defer func() { metrics.ObserveStage(string(StageStoring), o.now().Sub(stageStart)) }()

	key, err := o.place(ctx, doc, category, body)
	if err != nil {
		return &stageError{failure: Failure{Stage: StageStoring, Kind: classify(err)}, err: err}
	}
	result := Result{DocumentID: doc.ID, Category: string(category), Embedding: vector, StorageKey: key, Chunks: chunks}
	if err := o.commit(ctx, job, doc, result); err != nil {
		return err
	}

	if err := o.Objects.Delete(ctx, doc.StagingKey); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("ingestion.staging_cleanup_failed", map[string]any{
			"job_id":      job.ID,
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	}
	return nil
}

// extract returns the staged bytes and their text. Unparseable files fall
// back to the filename instead of failing the job.
func (o *Orchestrator) extract(ctx context.Context, job *Job, doc documents.Document) ([]byte, string, error) {
	data, err := o.readStaged(ctx, doc)
	if err != nil {
		return nil, "", &stageError{failure: Failure{Stage: StageExtracting, Kind: KindStorageUnavailable}, err: err}
	}

	res, err := extract.Extract(ctx, data, doc.ContentType, doc.FileName)
	if err != nil {
		if !errors.Is(err, extract.ErrExtraction) {
			return nil, "", &stageError{failure: Failure{Stage: StageExtracting, Kind: KindInternal}, err: err}
		}
		telemetry.Warn("ingestion.extraction_fallback", map[string]any{
			"job_id":      job.ID,
			"document_id": doc.ID,
			"error":       sanitizeDetail(err),
		})
		res = extract.Fallback(doc.FileName)
	}
	if err := o.Jobs.RecordExtraction(ctx, job.ID, res.Method, res.Fallback, o.now()); err != nil {
		return nil, "", fmt.Errorf("record extraction: %w", err)
	}
	job.ExtractionMethod = res.Method
	job.ExtractionFallback = res.Fallback
	return data, res.Text, nil
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, StageEmbedding, o.Config.MaxAttempts, o.Config.BackoffBase, func(ctx context.Context) error {
		v, err := o.Embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(v) != o.Embedder.Dimension() {
			return fmt.Errorf("%w: got dimension %d, want %d", embedding.ErrEmbeddingUnavailable, len(v), o.Embedder.Dimension())
		}
		vector = v
		return nil
	})
	return vector, err
}

// embedChunks splits text into overlapping word windows and embeds each one.
func (o *Orchestrator) embedChunks(ctx context.Context, text string) ([]documents.Chunk, error) {
	pieces := chunking.ByWords(text, chunking.Options{
		Words:     o.Config.ChunkWords,
		Overlap:   o.Config.ChunkOverlap,
		MaxChunks: o.Config.MaxChunks,
	})
	chunks := make([]documents.Chunk, 0, len(pieces))
	for _, p := range pieces {
		v, err := o.embed(ctx, p.Content)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", p.Index, err)
		}
		chunks = append(chunks, documents.Chunk{Index: p.Index, Content: p.Content, WordCount: p.WordCount, Embedding: v})
	}
	return chunks, nil
}

func (o *Orchestrator) categorize(ctx context.Context, text, fileName string, vector []float32) (categorize.Category, error) {
	var category categorize.Category
	err := RetryWithBackoff(ctx, StageCategorizing, o.Config.MaxAttempts, o.Config.BackoffBase, func(ctx context.Context) error {
		c, err := o.Categorizer.Categorize(ctx, categorize.Input{Text: text, FileName: fileName, Embedding: vector})
		if err != nil {
			return err
		}
		if !c.Valid() {
			return fmt.Errorf("%w: %q", categorize.ErrInvalidCategoryResponse, c)
		}
		category = c
		return nil
	})
	return category, err
}

func (o *Orchestrator) place(ctx context.Context, doc documents.Document, category categorize.Category, body []byte) (string, error) {
	req := placement.Request{
		ProjectID:   doc.ProjectID,
		DocumentID:  doc.ID,
		Category:    category,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Body:        body,
	}
	var key string
	err := RetryWithBackoff(ctx, StageStoring, o.Config.MaxAttempts, o.Config.BackoffBase, func(ctx context.Context) error {
		k, err := o.Placer.Place(ctx, req)
		if err != nil {
			if errors.Is(err, placement.ErrStorageKeyCollision) || errors.Is(err, placement.ErrInvalidKey) {
				return Permanent(err)
			}
			return err
		}
		key = k
		return nil
	})
	return key, err
}

// commit writes the document fields, chunks and Completed in one step. The
// placed object is removed again when the document was deleted meanwhile or
// the job was failed elsewhere.
func (o *Orchestrator) commit(ctx context.Context, job *Job, doc documents.Document, result Result) error {
	key := result.StorageKey
	err := RetryWithBackoff(ctx, StageStoring, o.Config.MaxAttempts, o.Config.BackoffBase, func(ctx context.Context) error {
		err := o.Jobs.Complete(ctx, job.ID, result, o.now())
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDocumentDeleted), errors.Is(err, ErrInvalidTransition),
			errors.Is(err, placement.ErrStorageKeyCollision), errors.Is(err, ErrNotFound):
			return Permanent(err)
		default:
			return err
		}
	})
	switch {
	case err == nil:
		job.Status = StatusCompleted
		o.logStatus(*job, StatusCompleted)
		telemetry.Info("ingestion.completed", map[string]any{
			"job_id":      job.ID,
			"document_id": doc.ID,
			"project_id":  doc.ProjectID,
			"category":    result.Category,
			"storage_key": key,
			"chunks":      len(result.Chunks),
		})
		return nil
	case errors.Is(err, ErrDocumentDeleted):
		o.discard(ctx, job, doc, key)
		return &stageError{failure: Failure{Stage: StageStoring, Kind: KindDocumentDeleted}, err: err}
	case errors.Is(err, ErrInvalidTransition):
		// A retry of the same document may already have committed this key.
		if current, gerr := o.Docs.Get(context.WithoutCancel(ctx), doc.ID); gerr != nil || current.StorageKey != key {
			o.discard(ctx, job, doc, key)
		}
		return errAbandoned
	default:
		return &stageError{failure: Failure{Stage: StageStoring, Kind: classify(err)}, err: err}
	}
}

func (o *Orchestrator) discard(ctx context.Context, job *Job, doc documents.Document, key string) {
	if err := o.Placer.Discard(context.WithoutCancel(ctx), key, doc.ID); err != nil {
		telemetry.Warn("ingestion.discard_failed", map[string]any{
			"job_id":      job.ID,
			"document_id": doc.ID,
			"storage_key": key,
			"error":       err.Error(),
		})
	}
}

func (o *Orchestrator) readStaged(ctx context.Context, doc documents.Document) ([]byte, error) {
	var data []byte
	err := RetryWithBackoff(ctx, StageExtracting, o.Config.MaxAttempts, o.Config.BackoffBase, func(ctx context.Context) error {
		rc, err := o.Objects.Open(ctx, doc.StagingKey)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				return Permanent(fmt.Errorf("%w: staged upload missing", placement.ErrStorageUnavailable))
			}
			return fmt.Errorf("%w: open staged upload: %v", placement.ErrStorageUnavailable, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("%w: read staged upload: %v", placement.ErrStorageUnavailable, err)
		}
		data = b
		return nil
	})
	return data, err
}

// advance moves the job one status forward. A lost race means the job was
// failed or claimed elsewhere, so the run stops quietly.
func (o *Orchestrator) advance(ctx context.Context, job *Job, to Status) error {
	if err := o.Jobs.Transition(ctx, job.ID, job.Status, to, o.now()); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return errAbandoned
		}
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	job.Status = to
	o.logStatus(*job, to)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job Job, se *stageError) {
	failure := se.failure
	failure.Detail = sanitizeDetail(se.err)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	if err := o.Jobs.Fail(writeCtx, job.ID, failure, o.now()); err != nil {
		telemetry.Error("ingestion.fail_write_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		return
	}
	metrics.IncJobsFailed(string(failure.Stage), string(failure.Kind))
	telemetry.Error("ingestion.failed", map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"project_id":  job.ProjectID,
		"stage":       string(failure.Stage),
		"kind":        string(failure.Kind),
		"error":       failure.Detail,
	})
}

func (o *Orchestrator) logStatus(job Job, status Status) {
	telemetry.Info("ingestion.status", map[string]any{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"status":      string(status),
		"attempt":     job.Attempt,
	})
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// classify maps a stage error to the kind recorded on the job.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, embedding.ErrEmbeddingUnavailable):
		return KindEmbeddingUnavailable
	case errors.Is(err, categorize.ErrInvalidCategoryResponse):
		return KindInvalidCategoryResponse
	case errors.Is(err, categorize.ErrCategorizerUnavailable):
		return KindCategorizerUnavailable
	case errors.Is(err, placement.ErrStorageKeyCollision):
		return KindStorageKeyCollision
	case errors.Is(err, placement.ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrDocumentDeleted):
		return KindDocumentDeleted
	case errors.Is(err, extract.ErrExtraction):
		return KindExtractionError
	default:
		return KindInternal
	}
}

func stageFor(status Status) Stage {
	switch status {
	case StatusPending:
		return StagePending
	case StatusExtracting:
		return StageExtracting
	case StatusEmbedding:
		return StageEmbedding
	case StatusCategorizing:
		return StageCategorizing
	default:
		return StageStoring
	}
}

var _ Runner = (*Orchestrator)(nil)
