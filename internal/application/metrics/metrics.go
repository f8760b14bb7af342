// Package metrics derives intent-specific analytical metrics from a resolved
// merchant context. Builders are pure: they read the already-loaded records
// and never touch storage. Missing source fields stay absent from the output
// so the response generator cannot cite a fabricated statistic.
package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/pkg/errors"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// Input carries everything a builder may read: the resolved context and the
// merchant's period history (latest first). History may be empty.
type Input struct {
	Context *merchant.ResolvedContext
	History []merchant.Record
}

// Result is one builder's output. Metrics holds projected and derived
// values; Abnormal maps metric keys to human-readable explanations of
// threshold breaches; Signals are coarse flags the prompt builder and the
// action-seed generator consume.
type Result struct {
	Metrics  map[string]any
	Abnormal map[string]string
	Signals  []string
}

func newResult() Result {
	return Result{
		Metrics:  map[string]any{},
		Abnormal: map[string]string{},
	}
}

// Builder is one intent-specific metric derivation.
type Builder interface {
	Name() string
	Build(ctx context.Context, in Input) (Result, error)
}

// Registry maps intents to their builder chains. The weather provider is
// optional; without one the season builder produces calendar metrics only.
type Registry struct {
	weather WeatherProvider
}

// NewRegistry constructs a Registry. weather may be nil.
func NewRegistry(weather WeatherProvider) *Registry {
	return &Registry{weather: weather}
}

// ForIntent returns the builders to run for an intent, in execution order.
// Every intent starts from the core projection.
func (r *Registry) ForIntent(intent types.Intent) []Builder {
	switch intent {
	case types.IntentIssue:
		return []Builder{coreBuilder{}, issueBuilder{}, strategyBuilder{}}
	case types.IntentRevisit:
		return []Builder{coreBuilder{}, revisitBuilder{}}
	case types.IntentSNS:
		return []Builder{coreBuilder{}, snsBuilder{}}
	case types.IntentCooperation:
		return []Builder{coreBuilder{}, cooperationBuilder{}}
	case types.IntentSeason:
		return []Builder{coreBuilder{}, seasonBuilder{weather: r.weather}}
	default:
		return []Builder{coreBuilder{}, strategyBuilder{}}
	}
}

// errNoMerchant is the shared guard for builders that require a merchant row.
func requireMerchant(in Input) (*merchant.Record, error) {
	if in.Context == nil || in.Context.Merchant == nil {
		return nil, errors.New(errors.ErrCodeMetricSourceMissing, "merchant record required")
	}
	return in.Context.Merchant, nil
}

// addIfPresent copies a numeric field into the metric map only when the
// source carries it.
func addIfPresent(m map[string]any, key string, rec *merchant.Record, field string) {
	if v, ok := rec.Get(field); ok && !math.IsNaN(v) {
		m[key] = v
	}
}

// addAreaIfPresent copies a trade-area field into the metric map.
func addAreaIfPresent(m map[string]any, key string, area *merchant.TradeArea, field string) {
	if area == nil {
		return
	}
	if v, ok := area.Get(field); ok && !math.IsNaN(v) {
		m[key] = v
	}
}

// deltaPP returns the percentage-point change of a ratio field between the
// latest record and the record monthsBack entries earlier in the history.
func deltaPP(history []merchant.Record, field string, monthsBack int) (float64, bool) {
	if len(history) <= monthsBack {
		return 0, false
	}
	now, ok1 := history[0].Get(field)
	then, ok2 := history[monthsBack].Get(field)
	if !ok1 || !ok2 {
		return 0, false
	}
	return (now - then) * 100, true
}

// peerMean averages a field over the peer set, skipping peers that lack it.
func peerMean(peers []merchant.Record, field string) (float64, bool) {
	var sum float64
	var n int
	for i := range peers {
		if v, ok := peers[i].Get(field); ok && !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// round2 rounds to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// stddev computes the population standard deviation.
func stddev(vals ...float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(vals)))
}

func fmtPP(v float64) string {
	return fmt.Sprintf("%+.1fpp", v)
}
