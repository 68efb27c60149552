package llmcall

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackzampolin/bookdeck/internal/providers"
)

func TestRecorderAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book", FileName)
	rec := NewRecorder(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "stages.cards.concept"
			if i%2 == 1 {
				key = "stages.cards.example"
			}
			rec.Record(&providers.ChatResult{
				Provider:         "mock",
				PromptTokens:     10,
				CompletionTokens: 5,
				CostUSD:          0.5,
				Success:          i != 9,
				ErrorMessage:     "boom",
			}, RecordOptions{Book: "deep-work", PromptKey: key})
		}(i)
	}
	wg.Wait()

	calls, err := List(path, QueryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(calls) != 10 {
		t.Fatalf("got %d calls, want 10", len(calls))
	}

	failed := false
	failures, err := List(path, QueryFilter{Success: &failed})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(failures) != 1 || failures[0].Error != "boom" {
		t.Errorf("failures = %+v, want one call with error %q", failures, "boom")
	}

	limited, _ := List(path, QueryFilter{PromptKey: "stages.cards.example", Limit: 2})
	if len(limited) != 2 {
		t.Errorf("got %d limited calls, want 2", len(limited))
	}

	usage := Summarize(calls)
	if len(usage) != 2 {
		t.Fatalf("got %d usage rows, want 2", len(usage))
	}
	if usage[0].PromptKey != "stages.cards.concept" || usage[0].Calls != 5 {
		t.Errorf("usage[0] = %+v", usage[0])
	}
	if usage[1].Failures != 1 || usage[1].InputTokens != 50 {
		t.Errorf("usage[1] = %+v", usage[1])
	}
}

func TestList_MissingFile(t *testing.T) {
	calls, err := List(filepath.Join(t.TempDir(), "none.jsonl"), QueryFilter{})
	if err != nil || calls != nil {
		t.Errorf("List() = %v, %v; want nil, nil", calls, err)
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.Record(&providers.ChatResult{}, RecordOptions{})
	if rec.Path() != "" {
		t.Errorf("Path() = %q, want empty", rec.Path())
	}
}
