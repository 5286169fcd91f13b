package ingestion

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("ingestion job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobInProgress     = errors.New("document already has an active ingestion job")
	ErrNotRetryable      = errors.New("only failed jobs can be retried")
	ErrDocumentDeleted   = errors.New("document deleted")
)

const maxDetailLength = 500

func sanitizeDetail(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxDetailLength {
		msg = strings.ToValidUTF8(msg[:maxDetailLength], "")
	}
	return msg
}
