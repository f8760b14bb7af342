package main

import "context"

// namedChecker adapts a health-check func to the handlers.HealthChecker
// interface.
type namedChecker struct {
	name  string
	check func(ctx context.Context) error
}

func (c namedChecker) Name() string                    { return c.name }
func (c namedChecker) Check(ctx context.Context) error { return c.check(ctx) }
