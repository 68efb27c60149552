package llmcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/bookdeck/internal/providers"
)

// FileName is the call log written next to a book's artifacts.
const FileName = "llm_calls.jsonl"

// Recorder appends calls to a JSONL file. It is safe for concurrent use;
// a nil Recorder records nothing.
type Recorder struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewRecorder creates a recorder appending to path.
func NewRecorder(path string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{path: path, logger: logger}
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Record captures an LLM call. Write failures are logged, never returned.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil {
		return
	}
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	if err := r.append(call); err != nil {
		r.logger.Warn("failed to record LLM call", "prompt_key", call.PromptKey, "error", err)
	}
}

func (r *Recorder) append(call *Call) error {
	line, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
