package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"docvault-backend/internal/bootstrap"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
	"docvault-backend/internal/workerproc"
)

const (
	defaultRegion             = "us-east-1"
	defaultVisibilitySeconds  = 900
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogPretty, nil)

	if cfg.QueueURL == "" {
		log.Fatal("INGEST_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("INGEST_SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := envInt("INGEST_WORKER_CONCURRENCY", defaultWorkerConcurrency)
	shutdownTimeout := time.Duration(envInt("INGEST_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	region := cfg.AWSRegion
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	sem := make(chan struct{}, max(1, concurrency))
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{
		"queue":       cfg.QueueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncWorkerMessage("received")
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				// In-flight jobs finish even after shutdown starts.
				handleMessage(context.WithoutCancel(ctx), sqsClient, cfg.QueueURL, app.Orchestrator, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": shutdownTimeout.String()})
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage runs one job. The message is deleted once the job reached a
// recorded outcome or the payload can never be processed; store outages
// leave it for redelivery.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, runner ingestion.Runner, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.JobID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.message_invalid", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.JobID, decoded.RequestID) {
			metrics.IncWorkerMessage("deleted_unrecoverable")
		}
		return
	}

	telemetry.Info("worker.job_received", baseFields(msg, decoded.JobID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, runner, body); err != nil {
		fields := baseFields(msg, decoded.JobID, decoded.RequestID)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.job_unknown", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.JobID, decoded.RequestID) {
				metrics.IncWorkerMessage("deleted_unrecoverable")
			}
			return
		}
		telemetry.Error("worker.job_failed", fields)
		metrics.IncWorkerMessage("failed")
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.JobID, decoded.RequestID) {
		telemetry.Info("worker.job_done", baseFields(msg, decoded.JobID, decoded.RequestID))
		metrics.IncWorkerMessage("completed")
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, jobID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, jobID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, jobID, requestID string) map[string]any {
	fields := map[string]any{
		"job_id":         jobID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
