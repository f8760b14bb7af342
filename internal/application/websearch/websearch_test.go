package websearch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

type mockProvider struct {
	name     string
	searchFn func(ctx context.Context, query string, opts ProviderOptions) ([]Doc, error)
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Search(ctx context.Context, query string, opts ProviderOptions) ([]Doc, error) {
	return m.searchFn(ctx, query, opts)
}

func doc(url, title string) Doc {
	return Doc{
		Title:   title,
		URL:     url,
		Snippet: "충분히 긴 본문 스니펫이 들어있는 문서입니다 " + title,
	}
}

func testConfig() config.WebSearchConfig {
	return config.WebSearchConfig{
		TopK:            3,
		RecencyDays:     30,
		ThinResultCount: 5,
		RerankMode:      "lexical",
	}
}

func TestMergeUnique_Idempotent(t *testing.T) {
	a := []Doc{doc("https://a.example/1", "첫번째 문서"), doc("https://a.example/2", "두번째 문서")}

	merged := MergeUnique(a, a)
	require.Len(t, merged, 2)
	assert.Equal(t, a[0].URL, merged[0].URL)
	assert.Equal(t, a[1].URL, merged[1].URL)
}

func TestMergeUnique_CaseInsensitiveFirstWins(t *testing.T) {
	a := []Doc{doc("https://Example.com/X", "원본 제목입니다")}
	b := []Doc{doc("https://example.com/x", "나중 제목입니다"), doc("", "빈 URL 문서")}

	merged := MergeUnique(a, b)
	require.Len(t, merged, 1)
	assert.Equal(t, "원본 제목입니다", merged[0].Title)
}

func TestClean(t *testing.T) {
	docs := []Doc{
		{URL: "https://ok.example", Title: "<b>유효한 제목</b>", Snippet: "<p>충분히 긴 본문 스니펫이 들어있는 문서입니다</p>"},
		{URL: "", Title: "제목있음인데", Snippet: "충분히 긴 본문 스니펫이 들어있는 문서입니다"},
		{URL: "https://short-title.example", Title: "ab", Snippet: "충분히 긴 본문 스니펫이 들어있는 문서입니다"},
		{URL: "https://short-snippet.example", Title: "유효한 제목", Snippet: "짧음"},
	}

	out := Clean(docs)
	require.Len(t, out, 1)
	assert.Equal(t, "유효한 제목", out[0].Title, "HTML tags must be stripped")
	assert.NotContains(t, out[0].Snippet, "<p>")
}

func TestFilterRecency(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	fresh := Doc{URL: "https://f", PublishedAt: now.AddDate(0, 0, -5)}
	stale := Doc{URL: "https://s", PublishedAt: now.AddDate(0, 0, -90)}
	unknown := Doc{URL: "https://u"}

	out := FilterRecency([]Doc{fresh, stale, unknown}, 30, now)
	require.Len(t, out, 2)
	assert.Equal(t, "https://f", out[0].URL)
	assert.Equal(t, "https://u", out[1].URL, "unknown dates are kept")

	// recencyDays <= 0 disables the filter.
	out = FilterRecency([]Doc{fresh, stale, unknown}, 0, now)
	assert.Len(t, out, 3)
}

func TestFilterRecency_Monotonic(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	docs := []Doc{
		{URL: "https://1", PublishedAt: now.AddDate(0, 0, -3)},
		{URL: "https://2", PublishedAt: now.AddDate(0, 0, -20)},
		{URL: "https://3", PublishedAt: now.AddDate(0, 0, -60)},
		{URL: "https://4"},
	}
	prev := map[string]bool{}
	for _, days := range []int{7, 30, 90, 365} {
		kept := map[string]bool{}
		for _, d := range FilterRecency(docs, days, now) {
			kept[d.URL] = true
		}
		for url := range prev {
			assert.True(t, kept[url], "widening to %d days must not drop %s", days, url)
		}
		prev = kept
	}
}

func TestRerank_RelevantDocScoresHigher(t *testing.T) {
	docs := []Doc{
		{URL: "https://1", Title: "주식 시장 동향", Snippet: "코스피 지수가 상승했습니다 어제 대비"},
		{URL: "https://2", Title: "소상공인 인스타그램 마케팅", Snippet: "인스타그램 릴스로 가게 홍보하는 방법"},
	}
	out := Rerank("인스타그램 마케팅", docs, "lexical")
	assert.Greater(t, out[1].Score, out[0].Score)
}

func TestRerank_EmbeddingDegradesToLexical(t *testing.T) {
	docs := []Doc{{URL: "https://1", Title: "인스타그램 홍보", Snippet: "릴스 활용법 총정리 안내"}}
	lex := Rerank("인스타그램", append([]Doc{}, docs...), "lexical")
	emb := Rerank("인스타그램", append([]Doc{}, docs...), "embedding")
	assert.InDelta(t, lex[0].Score, emb[0].Score, 1e-12)
}

func TestSortByScoreThenRecency(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	docs := []Doc{
		{URL: "https://low", Score: 0.1, PublishedAt: newer},
		{URL: "https://tie-old", Score: 0.5, PublishedAt: older},
		{URL: "https://tie-new", Score: 0.5, PublishedAt: newer},
	}
	SortByScoreThenRecency(docs)

	assert.Equal(t, "https://tie-new", docs[0].URL)
	assert.Equal(t, "https://tie-old", docs[1].URL)
	assert.Equal(t, "https://low", docs[2].URL)
}

func TestSearch_ProviderFailureTolerated(t *testing.T) {
	bad := &mockProvider{name: "bad", searchFn: func(context.Context, string, ProviderOptions) ([]Doc, error) {
		return nil, errors.New(errors.ErrCodeWebProviderFailed, "timeout")
	}}
	good := &mockProvider{name: "good", searchFn: func(_ context.Context, _ string, opts ProviderOptions) ([]Doc, error) {
		return []Doc{
			doc("https://g/1", "소상공인 마케팅 전략 안내"),
			doc("https://g/2", "가게 홍보 방법 총정리"),
		}, nil
	}}

	agg := NewAggregator(testConfig(), []Provider{bad, good}, nil, logging.NewNopLogger())
	resp, err := agg.Search(context.Background(), "마케팅 전략")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Docs)
	assert.Equal(t, "good", resp.ProviderUsed)
}

func TestSearch_ThinResultsBroadenOnce(t *testing.T) {
	var ranges []string
	p := &mockProvider{name: "p", searchFn: func(_ context.Context, _ string, opts ProviderOptions) ([]Doc, error) {
		ranges = append(ranges, opts.TimeRange)
		if opts.TimeRange == "month" {
			return []Doc{doc("https://p/1", "유일한 월간 결과")}, nil
		}
		return []Doc{
			doc("https://p/1", "유일한 월간 결과"), // duplicate URL, first wins
			doc("https://p/2", "연간 검색 추가 결과"),
		}, nil
	}}

	agg := NewAggregator(testConfig(), []Provider{p}, nil, logging.NewNopLogger())
	resp, err := agg.Search(context.Background(), "마케팅")

	require.NoError(t, err)
	assert.Equal(t, []string{"month", "year"}, ranges)
	assert.Equal(t, 1, resp.Meta.RetryCount)
	assert.True(t, resp.Meta.FallbackUsed)
	require.Len(t, resp.Docs, 2)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	agg := NewAggregator(testConfig(), []Provider{&mockProvider{name: "p"}}, nil, logging.NewNopLogger())
	_, err := agg.Search(context.Background(), "   ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeWebInvalidQuery))
}

func TestSearch_NoProviders(t *testing.T) {
	agg := NewAggregator(testConfig(), nil, nil, logging.NewNopLogger())
	_, err := agg.Search(context.Background(), "마케팅")
	assert.True(t, errors.IsCode(err, errors.ErrCodeWebNoProviders))
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	p := &mockProvider{name: "p", searchFn: func(_ context.Context, _ string, _ ProviderOptions) ([]Doc, error) {
		var docs []Doc
		for _, suffix := range []string{"a", "b", "c", "d", "e", "f"} {
			docs = append(docs, doc("https://p/"+suffix, "마케팅 관련 문서 "+strings.ToUpper(suffix)))
		}
		return docs, nil
	}}

	agg := NewAggregator(testConfig(), []Provider{p}, nil, logging.NewNopLogger())
	resp, err := agg.Search(context.Background(), "마케팅")

	require.NoError(t, err)
	assert.Len(t, resp.Docs, 3)
}
