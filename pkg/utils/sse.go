package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSEEncoder frames JSON payloads as Server-Sent Events. Every write is
// flushed immediately; backpressure comes from the transport, not from an
// internal buffer.
type SSEEncoder struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEncoder 创建SSE编码器并设置流式响应头。
func NewSSEEncoder(w http.ResponseWriter) (*SSEEncoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEEncoder{w: w, flusher: flusher}, nil
}

// Send writes one delimiter-terminated event block and flushes it.
func (e *SSEEncoder) Send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sse payload: %w", err)
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write sse event: %w", err)
	}
	e.flusher.Flush()
	return nil
}
