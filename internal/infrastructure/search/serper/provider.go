// Package serper implements the Serper (Google SERP) web-search provider.
package serper

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

// Provider calls the Serper search API.
type Provider struct {
	cfg    config.ProviderConfig
	hc     *http.Client
	logger logging.Logger
}

// New constructs the provider.
func New(cfg config.ProviderConfig, logger logging.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		hc:     &http.Client{Timeout: 15 * time.Second},
		logger: logger.Named("serper"),
	}
}

// Configured reports whether the provider can be used.
func (p *Provider) Configured() bool { return p.cfg.APIKey != "" }

func (p *Provider) Name() string { return "serper" }

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl"`
	HL  string `json:"hl"`
	TBS string `json:"tbs,omitempty"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// timeRangeTBS maps the aggregator's window names to Serper's tbs values.
var timeRangeTBS = map[string]string{
	"month": "qdr:m",
	"year":  "qdr:y",
}

func (p *Provider) Search(ctx context.Context, query string, opts websearch.ProviderOptions) ([]websearch.Doc, error) {
	body, err := json.Marshal(searchRequest{
		Q:   query,
		Num: opts.MaxResults,
		GL:  "kr",
		HL:  "ko",
		TBS: timeRangeTBS[opts.TimeRange],
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal serper request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "build serper request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.cfg.APIKey)

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "serper request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeWebProviderFailed, "serper returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeWebProviderFailed, "read serper response")
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode serper response")
	}

	docs := make([]websearch.Doc, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		docs = append(docs, websearch.Doc{
			Title:       r.Title,
			URL:         r.Link,
			Snippet:     r.Snippet,
			Source:      websearch.Domain(r.Link),
			PublishedAt: websearch.ParseDate(r.Date),
		})
	}
	return docs, nil
}
