package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const defaultRegion = "us-east-1"

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends queue messages to AWS SQS.
type SQSClient struct {
	client   sqsSender
	queueURL string
}

// NewSQSClient constructs an SQS-backed queue client for queueURL.
func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, errors.New("queue url is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSClient{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// Send delivers a message to the configured SQS queue. The job id is also set
// as a message attribute so it shows up in the console and DLQ tooling
// without decoding the body.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"JobId": {DataType: aws.String("String"), StringValue: aws.String(msg.JobID)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message for job %s: %w", msg.JobID, err)
	}
	return nil
}

var _ Client = (*SQSClient)(nil)
