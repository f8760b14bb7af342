// Package opensearch implements the internal news-index web provider. It
// searches a pre-ingested Korean commerce news index and is used alongside
// the external providers when configured.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

const defaultIndex = "commerce-news"

// Provider searches the internal news index.
type Provider struct {
	client *opensearch.Client
	index  string
	logger logging.Logger
}

// NewProvider builds the news-index provider. Returns an error when no
// address is configured so callers can skip registration cleanly.
func NewProvider(cfg config.OpenSearchConfig, logger logging.Logger) (*Provider, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeWebProviderFailed, "opensearch addresses not configured")
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "failed to create opensearch client")
	}

	index := cfg.Index
	if index == "" {
		index = defaultIndex
	}
	return &Provider{
		client: client,
		index:  index,
		logger: logger.Named("opensearch"),
	}, nil
}

func (p *Provider) Name() string { return "opensearch" }

type newsDoc struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source newsDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a multi-field match against the news index. TimeRange maps
// to a published_at range filter; documents without a date still match.
func (p *Provider) Search(ctx context.Context, query string, opts websearch.ProviderOptions) ([]websearch.Doc, error) {
	size := opts.MaxResults
	if size <= 0 {
		size = 10
	}

	dsl := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"title^2", "content"},
						},
					},
				},
				"filter": timeFilter(opts.TimeRange),
			},
		},
	}

	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "failed to marshal query DSL")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "news index search failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		p.logger.Warn("news index returned error status", logging.Int("status", resp.StatusCode))
		return nil, errors.Newf(errors.ErrCodeWebProviderFailed, "news index returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "failed to decode news index response")
	}

	docs := make([]websearch.Doc, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		src := h.Source
		source := src.Source
		if source == "" {
			source = websearch.Domain(src.URL)
		}
		docs = append(docs, websearch.Doc{
			Title:       src.Title,
			URL:         src.URL,
			Snippet:     src.Content,
			Source:      source,
			PublishedAt: websearch.ParseDate(src.PublishedAt),
			Score:       h.Score,
		})
	}
	return docs, nil
}

// timeFilter keeps undated documents in range results by matching on a
// should clause with a missing-field branch.
func timeFilter(timeRange string) []interface{} {
	var since time.Duration
	switch timeRange {
	case "month":
		since = 31 * 24 * time.Hour
	case "year":
		since = 365 * 24 * time.Hour
	default:
		return []interface{}{}
	}

	return []interface{}{
		map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"range": map[string]interface{}{
							"published_at": map[string]interface{}{
								"gte": time.Now().Add(-since).Format("2006-01-02"),
							},
						},
					},
					map[string]interface{}{
						"bool": map[string]interface{}{
							"must_not": []interface{}{
								map[string]interface{}{
									"exists": map[string]interface{}{"field": "published_at"},
								},
							},
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}
}
