package alerts

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStdoutSendWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	s := &Stdout{w: &buf}
	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected message written, got %q", buf.String())
	}
}
