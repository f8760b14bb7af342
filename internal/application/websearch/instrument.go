package websearch

import (
	"context"
	"time"
)

// ProviderObserver receives per-call timing for one provider.
type ProviderObserver func(provider string, elapsed time.Duration)

type instrumentedProvider struct {
	inner   Provider
	observe ProviderObserver
}

// InstrumentProvider wraps a provider so every call reports its duration. A
// nil observer returns the provider unchanged.
func InstrumentProvider(inner Provider, observe ProviderObserver) Provider {
	if observe == nil {
		return inner
	}
	return &instrumentedProvider{inner: inner, observe: observe}
}

func (p *instrumentedProvider) Name() string { return p.inner.Name() }

func (p *instrumentedProvider) Search(ctx context.Context, query string, opts ProviderOptions) ([]Doc, error) {
	start := time.Now()
	docs, err := p.inner.Search(ctx, query, opts)
	p.observe(p.inner.Name(), time.Since(start))
	return docs, err
}
