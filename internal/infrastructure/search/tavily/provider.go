// Package tavily implements the Tavily web-search provider.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Provider calls the Tavily search API.
type Provider struct {
	cfg    config.ProviderConfig
	hc     *http.Client
	logger logging.Logger
}

// New constructs the provider. Configured reports whether an API key is set;
// unconfigured providers should not be registered with the aggregator.
func New(cfg config.ProviderConfig, logger logging.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		hc:     &http.Client{Timeout: 15 * time.Second},
		logger: logger.Named("tavily"),
	}
}

// Configured reports whether the provider can be used.
func (p *Provider) Configured() bool { return p.cfg.APIKey != "" }

func (p *Provider) Name() string { return "tavily" }

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	TimeRange   string `json:"time_range,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

func (p *Provider) Search(ctx context.Context, query string, opts websearch.ProviderOptions) ([]websearch.Doc, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:      p.cfg.APIKey,
		Query:       query,
		TimeRange:   opts.TimeRange,
		MaxResults:  opts.MaxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal tavily request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "build tavily request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "tavily request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeWebProviderFailed, "tavily returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "read tavily response")
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode tavily response")
	}

	docs := make([]websearch.Doc, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		docs = append(docs, websearch.Doc{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Content,
			Source:      websearch.Domain(r.URL),
			PublishedAt: websearch.ParseDate(r.PublishedDate),
		})
	}
	return docs, nil
}
