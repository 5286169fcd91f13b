package queue

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeMessageUsesJobID(t *testing.T) {
	payload, err := EncodeMessage(Message{JobID: "job-123", RequestID: "req-1", EnqueuedAt: "2026-01-30T22:00:00Z"})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if !strings.Contains(string(payload), `"jobId":"job-123"`) {
		t.Fatalf("unexpected payload %s", payload)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.JobID != "job-123" || got.Version != MessageVersion {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestDecodeMessageAcceptsUnversionedPayload(t *testing.T) {
	got, err := DecodeMessage([]byte(`{"jobId":"job-1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.JobID != "job-1" || got.Version != 0 {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestDecodeMessageRejectsNewerVersion(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"jobId":"job-1","version":99}`))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
