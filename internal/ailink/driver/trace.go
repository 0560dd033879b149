package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// TraceEntry is one outbound call in the NDJSON trace.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Model       string          `json:"model,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	KeyHint     string          `json:"key_hint,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Tracer appends trace entries to a writer, one JSON object per line.
type Tracer struct {
	w      io.Writer
	closer io.Closer
	mu     sync.Mutex
}

var (
	activeTracer *Tracer
	tracerMu     sync.Mutex
)

// NewTracer returns a tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	t := &Tracer{w: w}
	if c, ok := w.(io.Closer); ok {
		t.closer = c
	}
	return t
}

// EnableTracing starts tracing to the file at path and returns a function that
// stops tracing and closes the file.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	SetTracer(NewTracer(f))
	return func() { SetTracer(nil) }, nil
}

// SetTracer replaces the active tracer, closing the previous one.
func SetTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	if activeTracer != nil {
		_ = activeTracer.Close()
	}
	activeTracer = t
}

// Trace records an entry when tracing is enabled.
func Trace(entry TraceEntry) {
	tracerMu.Lock()
	t := activeTracer
	tracerMu.Unlock()

	if t == nil {
		return
	}
	t.Write(entry)
}

// Write records a trace entry.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil || t.w == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.w.Write(append(data, '\n'))
}

// Close closes the underlying writer when it is closable.
func (t *Tracer) Close() error {
	if t == nil || t.closer == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closer.Close()
}

// KeyHint returns a non-secret hint for an API key: its last four characters.
func KeyHint(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "…" + key[len(key)-4:]
}
