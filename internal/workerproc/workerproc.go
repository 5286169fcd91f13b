// Package workerproc turns queue payloads into ingestion runs.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/queue"
	"docvault-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingJobID indicates a message without a job id.
type ErrMissingJobID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingJobID) Error() string { return "missing job id" }

// ErrProcess means the job store could not be reached while running the job.
// Pipeline failures are recorded on the job and do not surface here.
type ErrProcess struct {
	JobID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "run ingestion job"
	}
	return "run ingestion job: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether a payload can never be processed, so the
// message should be dropped instead of redelivered.
func Unrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingJobID:
		return true
	}
	var procErr ErrProcess
	return errors.As(err, &procErr) && errors.Is(procErr.Err, ingestion.ErrNotFound)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, meta, ErrMissingJobID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates and runs the job named by a payload.
func HandleMessage(ctx context.Context, runner ingestion.Runner, body string) error {
	if runner == nil {
		return errors.New("ingestion runner not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return ErrMissingJobID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := telemetry.WithRequestID(ctx, msg.RequestID)
	if err := runner.Run(ctxWithRequest, msg.JobID); err != nil {
		return ErrProcess{JobID: msg.JobID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
