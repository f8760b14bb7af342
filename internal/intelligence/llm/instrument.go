package llm

import (
	"context"
	"time"
)

// Observer receives the outcome of each completion call.
type Observer func(operation, status string, elapsed time.Duration)

type instrumentedClient struct {
	inner     Client
	operation string
	observe   Observer
}

// Instrument wraps a client so every completion reports its outcome under the
// given operation name. A nil observer returns the client unchanged.
func Instrument(inner Client, operation string, observe Observer) Client {
	if observe == nil {
		return inner
	}
	return &instrumentedClient{inner: inner, operation: operation, observe: observe}
}

func (c *instrumentedClient) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := c.inner.Complete(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
	}
	c.observe(c.operation, status, time.Since(start))
	return text, err
}
