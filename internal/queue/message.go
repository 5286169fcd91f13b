// Package queue carries ingestion job ids between the API and cmd/worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageVersion is the current payload layout. Version 0 means the field was
// omitted and is read as the current layout.
const MessageVersion = 1

// ErrUnsupportedVersion is returned for payloads written by a newer producer.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Message asks a worker to run one ingestion job.
type Message struct {
	JobID      string `json:"jobId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
	Version    int    `json:"version"`
}

// Client sends job messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// EncodeMessage returns the JSON payload, stamping the current version when unset.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a payload and rejects versions this build cannot read.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
