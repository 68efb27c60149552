package llmcall

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
)

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	Book      string
	PromptKey string
	Provider  string
	After     *time.Time
	Success   *bool
	Limit     int
}

func (f QueryFilter) match(c Call) bool {
	switch {
	case f.Book != "" && c.Book != f.Book:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	}
	return true
}

// List reads the call log at path and returns the calls matching filter in
// file order. A missing log is empty.
func List(path string, filter QueryFilter) ([]Call, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	defer f.Close()

	var calls []Call
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			return nil, fmt.Errorf("call log line %d: %w", line, err)
		}
		if !filter.match(c) {
			continue
		}
		calls = append(calls, c)
		if filter.Limit > 0 && len(calls) >= filter.Limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read call log: %w", err)
	}
	return calls, nil
}

// PromptUsage aggregates calls for one prompt key.
type PromptUsage struct {
	PromptKey    string  `json:"prompt_key" yaml:"prompt_key"`
	Calls        int     `json:"calls" yaml:"calls"`
	Failures     int     `json:"failures" yaml:"failures"`
	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"cost_usd" yaml:"cost_usd"`
}

// Summarize groups calls by prompt key, sorted by key.
func Summarize(calls []Call) []PromptUsage {
	byKey := make(map[string]*PromptUsage)
	for _, c := range calls {
		u, ok := byKey[c.PromptKey]
		if !ok {
			u = &PromptUsage{PromptKey: c.PromptKey}
			byKey[c.PromptKey] = u
		}
		u.Calls++
		if !c.Success {
			u.Failures++
		}
		u.InputTokens += c.InputTokens
		u.OutputTokens += c.OutputTokens
		u.CostUSD += c.CostUSD
	}

	out := make([]PromptUsage, 0, len(byKey))
	for _, u := range byKey {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromptKey < out[j].PromptKey })
	return out
}
