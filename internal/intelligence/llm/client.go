// Package llm provides the chat-completion client used by the router, the
// resolver's name extraction, the query rewriter and the response generators.
// The backend is any OpenAI-compatible /chat/completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Request is one completion request. A nil Temperature uses the client
// default; set it explicitly (Temp helper) to pin a value, including zero
// for deterministic single-token output.
type Request struct {
	System      string
	User        string
	Temperature *float64
	MaxTokens   int
}

// Temp returns v as a Request.Temperature value.
func Temp(v float64) *float64 { return &v }

// Client is the chat-completion contract consumed across the service.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type httpClient struct {
	cfg    config.LLMConfig
	hc     *http.Client
	logger logging.Logger
}

// NewClient constructs an HTTP-backed Client from cfg.
func NewClient(cfg config.LLMConfig, logger logging.Logger) Client {
	return &httpClient{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the request, retrying transient failures with exponential
// backoff up to cfg.MaxRetries additional attempts.
func (c *httpClient) Complete(ctx context.Context, req Request) (string, error) {
	temp := c.cfg.Temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}

	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: temp,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "marshal completion request")
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", errors.Wrap(ctx.Err(), errors.ErrCodeLLMTimeout, "completion cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		text, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("completion attempt failed",
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}
	return "", lastErr
}

func (c *httpClient) doOnce(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeLLMRequestFailed, "build completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", true, errors.Wrap(err, errors.ErrCodeLLMRequestFailed, "completion request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, errors.Wrap(err, errors.ErrCodeLLMRequestFailed, "read completion response")
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retryable, errors.Newf(errors.ErrCodeLLMRequestFailed,
			"completion endpoint returned %d", resp.StatusCode).WithDetail(string(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeSerialization, "decode completion response")
	}
	if parsed.Error != nil {
		return "", false, errors.New(errors.ErrCodeLLMRequestFailed, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", false, errors.New(errors.ErrCodeLLMEmptyResponse, "completion returned no content")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// FailureText renders an LLM error as user-visible fallback text so a turn
// always yields some response instead of an empty one.
func FailureText(err error) string {
	return fmt.Sprintf("LLM 호출 실패: %v", err)
}
