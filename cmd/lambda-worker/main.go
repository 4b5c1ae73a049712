package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"kyc-backend/internal/bootstrap"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/telemetry"
	"kyc-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	built, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processEvent(ctx, app.Agent, event), nil
}

// processEvent reports retryable failures back to SQS. Messages that can never
// succeed are logged and acknowledged so they do not loop.
func processEvent(ctx context.Context, ops workerproc.Operations, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		summary, err := workerproc.HandleMessage(ctx, ops, record.Body)
		if err == nil {
			telemetry.Info("lambda_worker.message_done", map[string]any{"message_id": record.MessageId, "summary": summary})
			continue
		}
		fields := map[string]any{"message_id": record.MessageId, "error": err.Error()}
		if workerproc.Unrecoverable(err) {
			telemetry.Warn("lambda_worker.message_dropped", fields)
			continue
		}
		telemetry.Error("lambda_worker.message_failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	defer telemetry.Sync()
	lambda.Start(handler)
}
