package object

import (
	"io"
	"strings"
	"testing"
)

func TestSniffReplaysHead(t *testing.T) {
	body := "%PDF-1.4\n" + strings.Repeat("x", 1024)
	contentType, r, err := Sniff(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if contentType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", contentType)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatalf("body not replayed intact")
	}
}

func TestSniffShortInput(t *testing.T) {
	contentType, r, err := Sniff(strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("expected text/plain, got %s", contentType)
	}
	got, _ := io.ReadAll(r)
	if string(got) != "hi" {
		t.Fatalf("unexpected body %q", got)
	}
}
