package providers

import (
	"context"

	"github.com/jackzampolin/bookdeck/internal/cache"
)

// CachedClient answers repeated chat requests from the response cache.
type CachedClient struct {
	next  LLMClient
	cache *cache.Cache
}

// NewCachedClient wraps next. A nil or disabled cache passes through.
func NewCachedClient(next LLMClient, c *cache.Cache) *CachedClient {
	return &CachedClient{next: next, cache: c}
}

// Name returns the wrapped client's name.
func (c *CachedClient) Name() string {
	return c.next.Name()
}

// Chat returns a cached result for an identical request, or forwards it.
func (c *CachedClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	key := struct {
		Provider string       `json:"provider"`
		Request  *ChatRequest `json:"request"`
	}{c.next.Name(), req}

	result, _, err := cache.Do(c.cache, cache.KindCompletion, key, func() (*ChatResult, error) {
		return c.next.Chat(ctx, req)
	})
	return result, err
}

// CachedImageGenerator answers repeated image prompts from the cache.
type CachedImageGenerator struct {
	next  ImageGenerator
	cache *cache.Cache
}

// NewCachedImageGenerator wraps next. A nil or disabled cache passes through.
func NewCachedImageGenerator(next ImageGenerator, c *cache.Cache) *CachedImageGenerator {
	return &CachedImageGenerator{next: next, cache: c}
}

// Name returns the wrapped generator's name.
func (g *CachedImageGenerator) Name() string {
	return g.next.Name()
}

// Generate returns a cached image for an identical request, or forwards it.
// Failures are never cached.
func (g *CachedImageGenerator) Generate(ctx context.Context, req ImageRequest) (string, error) {
	key := struct {
		Provider string       `json:"provider"`
		Request  ImageRequest `json:"request"`
	}{g.next.Name(), req}

	image, _, err := cache.Do(g.cache, cache.KindImage, key, func() (string, error) {
		return g.next.Generate(ctx, req)
	})
	return image, err
}

var (
	_ LLMClient      = (*CachedClient)(nil)
	_ ImageGenerator = (*CachedImageGenerator)(nil)
)
