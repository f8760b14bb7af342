// Package websearch aggregates external search providers into a single
// deduplicated, recency-filtered, relevance-ranked document list. The
// pipeline is synchronous and per-call; given identical provider responses
// its filtering and ranking are deterministic.
package websearch

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Doc is one web document flowing through the pipeline. URL is the dedup
// key; PublishedAt is best-effort and may be zero.
type Doc struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Score       float64   `json:"score"`
}

// ProviderOptions controls one provider call. TimeRange is "month" for the
// primary window and "year" for the broadened retry.
type ProviderOptions struct {
	MaxResults int
	TimeRange  string
}

// Provider is one search backend. A provider failure yields an empty list
// at the aggregation level, never a pipeline failure.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts ProviderOptions) ([]Doc, error)
}

// Meta records how the aggregation behaved.
type Meta struct {
	RetryCount   int           `json:"retry_count"`
	FallbackUsed bool          `json:"fallback_used"`
	Elapsed      time.Duration `json:"execution_time"`
	Query        string        `json:"query"`
}

// Response is the aggregation result.
type Response struct {
	Success      bool   `json:"success"`
	Docs         []Doc  `json:"docs"`
	ProviderUsed string `json:"provider_used"`
	Meta         Meta   `json:"meta"`
}

// Aggregator runs the full search pipeline.
type Aggregator interface {
	Search(ctx context.Context, query string) (Response, error)
}

// Cleaning minimums.
const (
	minTitleRunes   = 3
	minSnippetRunes = 15
	fetchMultiplier = 3 // over-fetch before filtering
)

const rewriteSystemPrompt = `소상공인 마케팅 정보 검색을 위한 검색어로 다듬으세요.
원래 의미를 유지하면서 핵심 키워드 중심의 짧은 한국어 검색어 하나만 출력하세요.`

type aggregator struct {
	cfg       config.WebSearchConfig
	providers []Provider
	rewriter  llm.Client // nil disables query rewrite
	logger    logging.Logger
	now       func() time.Time
}

// NewAggregator constructs the pipeline. rewriter may be nil.
func NewAggregator(cfg config.WebSearchConfig, providers []Provider, rewriter llm.Client, logger logging.Logger) Aggregator {
	return &aggregator{
		cfg:       cfg,
		providers: providers,
		rewriter:  rewriter,
		logger:    logger.Named("websearch"),
		now:       time.Now,
	}
}

func (a *aggregator) Search(ctx context.Context, query string) (Response, error) {
	start := a.now()
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, errors.New(errors.ErrCodeWebInvalidQuery, "query must not be empty")
	}
	if len(a.providers) == 0 {
		return Response{}, errors.New(errors.ErrCodeWebNoProviders, "no search providers configured")
	}

	meta := Meta{Query: query}

	// Query rewrite is best-effort; failure keeps the original query.
	effective := query
	if a.cfg.RewriteQueries && a.rewriter != nil {
		if rewritten, err := a.rewriter.Complete(ctx, llm.Request{
			System: rewriteSystemPrompt, User: query, MaxTokens: 48,
		}); err == nil && strings.TrimSpace(rewritten) != "" {
			effective = strings.TrimSpace(rewritten)
			meta.Query = effective
		} else if err != nil {
			a.logger.Warn("query rewrite failed, using original", logging.Err(err))
		}
	}

	opts := ProviderOptions{
		MaxResults: a.cfg.TopK * fetchMultiplier,
		TimeRange:  "month",
	}
	docs, providerUsed := a.fanOut(ctx, effective, opts)

	// Thin primary results: broaden the window once and merge, first
	// occurrence wins.
	if len(docs) <= a.cfg.ThinResultCount {
		meta.RetryCount++
		meta.FallbackUsed = true
		opts.TimeRange = "year"
		wide, wideProvider := a.fanOut(ctx, effective, opts)
		docs = MergeUnique(docs, wide)
		if providerUsed == "" {
			providerUsed = wideProvider
		}
	}

	docs = Clean(docs)
	docs = FilterRecency(docs, a.cfg.RecencyDays, a.now())
	docs = Rerank(effective, docs, a.cfg.RerankMode)
	SortByScoreThenRecency(docs)
	if len(docs) > a.cfg.TopK {
		docs = docs[:a.cfg.TopK]
	}

	meta.Elapsed = a.now().Sub(start)
	return Response{
		Success:      true,
		Docs:         docs,
		ProviderUsed: providerUsed,
		Meta:         meta,
	}, nil
}

// fanOut queries every provider in order, tolerating individual failures.
// providerUsed names the providers that contributed results.
func (a *aggregator) fanOut(ctx context.Context, query string, opts ProviderOptions) ([]Doc, string) {
	var all []Doc
	var used []string
	for _, p := range a.providers {
		callCtx := ctx
		var cancel context.CancelFunc
		if a.cfg.ProviderTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, a.cfg.ProviderTimeout)
		}
		docs, err := p.Search(callCtx, query, opts)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			a.logger.Warn("provider failed",
				logging.String("provider", p.Name()),
				logging.Err(err),
			)
			continue
		}
		if len(docs) > 0 {
			used = append(used, p.Name())
		}
		all = append(all, docs...)
	}
	return MergeUnique(nil, all), strings.Join(used, "+")
}

// MergeUnique appends b to a, dropping documents whose URL (case-insensitive)
// already appeared. First occurrence wins. Documents with empty URLs are
// dropped here as well since they cannot be deduplicated.
func MergeUnique(a, b []Doc) []Doc {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]Doc, 0, len(a)+len(b))
	for _, d := range append(append([]Doc{}, a...), b...) {
		key := strings.ToLower(strings.TrimSpace(d.URL))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Clean drops near-empty stub documents and strips HTML tags from titles and
// snippets.
func Clean(docs []Doc) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		d.Title = strings.TrimSpace(htmlTagPattern.ReplaceAllString(d.Title, ""))
		d.Snippet = strings.TrimSpace(htmlTagPattern.ReplaceAllString(d.Snippet, ""))
		if strings.TrimSpace(d.URL) == "" {
			continue
		}
		if len([]rune(d.Title)) < minTitleRunes {
			continue
		}
		if len([]rune(d.Snippet)) < minSnippetRunes {
			continue
		}
		out = append(out, d)
	}
	return out
}

// FilterRecency drops documents older than recencyDays. Unknown publish
// dates are kept; recencyDays <= 0 disables the filter entirely.
func FilterRecency(docs []Doc, recencyDays int, now time.Time) []Doc {
	if recencyDays <= 0 {
		return docs
	}
	cutoff := now.AddDate(0, 0, -recencyDays)
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if d.PublishedAt.IsZero() || !d.PublishedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out
}

// SortByScoreThenRecency orders docs by relevance score descending, then
// publish time descending. Stable so equal documents keep provider order.
func SortByScoreThenRecency(docs []Doc) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].PublishedAt.After(docs[j].PublishedAt)
	})
}
