package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type noFlushWriter struct {
	http.ResponseWriter
}

func TestNewSSEEncoderSetsStreamingHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	if _, err := NewSSEEncoder(rec); err != nil {
		t.Fatalf("NewSSEEncoder: %v", err)
	}

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for key, value := range want {
		if got := rec.Header().Get(key); got != value {
			t.Fatalf("%s = %q, want %q", key, got, value)
		}
	}
}

func TestNewSSEEncoderRequiresFlusher(t *testing.T) {
	rec := httptest.NewRecorder()

	if _, err := NewSSEEncoder(noFlushWriter{rec}); err == nil {
		t.Fatal("expected an error for a non-flushing writer")
	}
}

func TestSendWritesFlushedEventBlocks(t *testing.T) {
	rec := httptest.NewRecorder()

	encoder, err := NewSSEEncoder(rec)
	if err != nil {
		t.Fatalf("NewSSEEncoder: %v", err)
	}

	if err := encoder.Send(map[string]any{"delta": "hi", "done": false}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := encoder.Send(map[string]any{"done": true}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rec.Body.String()
	want := "data: {\"delta\":\"hi\",\"done\":false}\n\ndata: {\"done\":true}\n\n"
	if body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
	if !rec.Flushed {
		t.Fatal("Send must flush each event")
	}
}
