package providers

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: `{"a": 1}`, want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\": [1, 2]}\n```", want: `{"a":[1,2]}`},
		{name: "prose around object", in: "Here you go: {\"a\": true} hope it helps", want: `{"a":true}`},
		{name: "array", in: "result: [1,2,3]", want: `[1,2,3]`},
		{name: "empty", in: "   ", wantErr: true},
		{name: "garbage", in: "no json here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStructuredJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	format, err := JSONSchemaFormat("card", json.RawMessage(`{
		"type": "object",
		"properties": {"title": {"type": "string"}},
		"required": ["title"]
	}`))
	if err != nil {
		t.Fatalf("JSONSchemaFormat() error = %v", err)
	}

	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "valid", doc: `{"title":"x"}`},
		{name: "missing field", doc: `{}`, wantErr: true},
		{name: "wrong type", doc: `{"title":3}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStructuredJSON(format.JSONSchema, json.RawMessage(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateStructuredJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	t.Run("no schema accepts anything", func(t *testing.T) {
		if err := validateStructuredJSON(nil, json.RawMessage(`42`)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestStructuredRepairPrompt(t *testing.T) {
	got := structuredRepairPrompt(json.RawMessage(`{"type":"object"}`), errString("boom"))
	for _, want := range []string{"boom", `{"type":"object"}`, "ONLY valid JSON"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
