package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker
//
// The function takes two triggers: the ingestion SQS queue, and an EventBridge
// schedule that runs one sweep of stale and orphaned jobs.

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"docvault-backend/internal/bootstrap"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	// Sweeps redispatch through the queue; an in-process pool would be lost.
	cfg.RequireQueue = true
	telemetry.Configure(cfg.LogLevel, cfg.LogPretty, nil)
	app, initErr = bootstrap.Build(context.Background(), cfg)
}

// trigger holds just enough of an event to tell the two sources apart.
type trigger struct {
	Records    []json.RawMessage `json:"Records"`
	DetailType string            `json:"detail-type"`
}

func handler(ctx context.Context, raw json.RawMessage) (any, error) {
	initOnce.Do(initApp)

	var kind trigger
	if err := json.Unmarshal(raw, &kind); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if kind.DetailType != "" {
		if initErr != nil {
			return nil, initErr
		}
		return sweep(ctx, app.Sweeper)
	}

	var event events.SQSEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decode sqs event: %w", err)
	}
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processRecords(ctx, app.Orchestrator, event.Records), nil
}

// sweeper is the part of ingestion.Sweeper a scheduled run needs.
type sweeper interface {
	SweepOnce(ctx context.Context) (ingestion.SweepReport, error)
}

func sweep(ctx context.Context, s sweeper) (ingestion.SweepReport, error) {
	report, err := s.SweepOnce(ctx)
	if err != nil {
		telemetry.Error("worker.sweep_failed", map[string]any{"error": err.Error()})
		return report, err
	}
	telemetry.Info("worker.sweep", map[string]any{
		"redispatched": report.Redispatched,
		"adopted":      report.Adopted,
		"abandoned":    report.Abandoned,
	})
	return report, nil
}

// processRecords reports only records worth redelivering as batch failures.
func processRecords(ctx context.Context, r ingestion.Runner, records []events.SQSMessage) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncWorkerMessage("received")
		err := workerproc.HandleMessage(ctx, r, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerMessage("completed")
		case workerproc.Unrecoverable(err):
			metrics.IncWorkerMessage("deleted_unrecoverable")
			telemetry.Warn("worker.message_dropped", map[string]any{
				"messageId": record.MessageId,
				"error":     err.Error(),
			})
		default:
			metrics.IncWorkerMessage("failed")
			telemetry.Error("worker.message_failed", map[string]any{
				"messageId": record.MessageId,
				"error":     err.Error(),
			})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
