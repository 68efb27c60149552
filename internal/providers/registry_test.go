package providers

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
)

func quietRegistry(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Reload(cfg)
	return r
}

func TestRegistry_FromConfig(t *testing.T) {
	r := quietRegistry(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"openrouter": {Type: OpenRouterName, APIKey: "k", Enabled: true},
			"nokey":      {Type: OpenRouterName, Enabled: true},
			"disabled":   {Type: OpenRouterName, APIKey: "k"},
		},
		ImageProviders: map[string]ImageProviderConfig{
			"runware": {Type: RunwareName, APIKey: "k", Enabled: true},
			"openai":  {Type: OpenAIImageName, Enabled: true}, // no key
			"horde":   {Type: HordeName, Enabled: true},
			"local":   {Type: SDWebUIName, Enabled: true},
			"bogus":   {Type: "bogus", Enabled: true},
		},
	})

	if got, want := r.ListLLM(), []string{"openrouter"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListLLM() = %v, want %v", got, want)
	}
	if got, want := r.ListImage(), []string{"horde", "local", "runware"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListImage() = %v, want %v", got, want)
	}

	gen, err := r.GetImage("local")
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if gen.Name() != SDWebUIName {
		t.Errorf("Name() = %q, want %q", gen.Name(), SDWebUIName)
	}
	if _, err := r.GetLLM("missing"); err == nil {
		t.Error("expected error for unknown LLM")
	}
}

func TestRegistry_Reload(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"a": {Type: OpenRouterName, APIKey: "k1", Enabled: true},
			"b": {Type: MockClientName, Enabled: true},
		},
	}
	r := quietRegistry(cfg)
	before, _ := r.GetLLM("a")

	// Unchanged config keeps the same instance.
	r.Reload(cfg)
	same, _ := r.GetLLM("a")
	if same != before {
		t.Error("unchanged provider was recreated")
	}

	cfg.LLMProviders = map[string]LLMProviderConfig{
		"a": {Type: OpenRouterName, APIKey: "k2", Enabled: true},
	}
	r.Reload(cfg)
	after, err := r.GetLLM("a")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if after == before {
		t.Error("changed provider was not recreated")
	}
	if _, err := r.GetLLM("b"); err == nil {
		t.Error("removed provider still registered")
	}
}

func TestRegistry_ManualRegistrationSurvivesReload(t *testing.T) {
	r := quietRegistry(RegistryConfig{})
	mock := NewMockClient()
	r.RegisterLLM("test", mock)
	r.Reload(RegistryConfig{})

	got, err := r.GetLLM("test")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if got != LLMClient(mock) {
		t.Error("manual registration replaced")
	}
}

func TestRegistry_WrapsWithCache(t *testing.T) {
	r := quietRegistry(RegistryConfig{
		LLMProviders:   map[string]LLMProviderConfig{"m": {Type: MockClientName, Enabled: true}},
		ImageProviders: map[string]ImageProviderConfig{"m": {Type: MockClientName, Enabled: true}},
		Cache:          newTestCache(t),
	})
	llm, _ := r.GetLLM("m")
	if _, ok := llm.(*CachedClient); !ok {
		t.Errorf("LLM is %T, want *CachedClient", llm)
	}
	img, _ := r.GetImage("m")
	if _, ok := img.(*CachedImageGenerator); !ok {
		t.Errorf("image is %T, want *CachedImageGenerator", img)
	}
}
