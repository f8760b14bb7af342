// Package merchant defines the merchant and trade-area domain model and the
// repository contracts the application layer consumes. Records are read-only
// from the service's perspective; ingestion populates the underlying tables
// before the service starts serving turns.
package merchant

import (
	"context"
	"math"
	"strings"
)

// Record is one merchant row for one period. (MerchantID, Period) is the
// natural key; "latest" means max period. Numeric holds the ratio and
// percentage fields keyed by their canonical column names; a key absent from
// the map means the source value was null and it must stay absent; metric
// builders never substitute zero for missing data.
type Record struct {
	MerchantID   string             `json:"merchant_id"`
	Name         string             `json:"merchant_name"`
	Industry     string             `json:"industry"`
	TradeAreaKey string             `json:"trade_area_key"`
	Address      string             `json:"address"`
	Period       string             `json:"period"` // YYYYMM
	Numeric      map[string]float64 `json:"numeric"`
}

// Has reports whether the named numeric field is present.
func (r *Record) Has(field string) bool {
	_, ok := r.Numeric[field]
	return ok
}

// Get returns the named numeric field and whether it is present.
func (r *Record) Get(field string) (float64, bool) {
	v, ok := r.Numeric[field]
	return v, ok
}

// TradeArea is one trade-area aggregate row keyed by (Period, Key, Industry).
// Multiple merchants share one TradeArea per key.
type TradeArea struct {
	Period   string             `json:"period"`
	Key      string             `json:"trade_area_key"`
	Industry string             `json:"industry"`
	Numeric  map[string]float64 `json:"numeric"`
}

// Get returns the named numeric field and whether it is present.
func (t *TradeArea) Get(field string) (float64, bool) {
	v, ok := t.Numeric[field]
	return v, ok
}

// Candidate is a resolver match: enough of a Record to disambiguate, plus the
// ranking keys derived from the stored (possibly masked) name.
type Candidate struct {
	MerchantID string `json:"merchant_id"`
	Name       string `json:"merchant_name"`
	Industry   string `json:"industry"`
	Address    string `json:"address"`

	// Exact and Prefix record which matching tier produced this candidate.
	Exact  bool `json:"-"`
	Prefix bool `json:"-"`
}

// StarCount returns the number of mask characters in the candidate's name.
func (c Candidate) StarCount() int { return strings.Count(c.Name, "*") }

// ResolvedContext is the per-turn view of a resolved merchant: the latest
// record, its trade area, the same-industry peer set and the cross-industry
// neighbor set. Both sets exclude the merchant itself.
type ResolvedContext struct {
	Merchant  *Record
	TradeArea *TradeArea
	Peers     []Record
	Neighbors []Record
}

// Store is the merchant query contract. Not-found conditions are returned as
// typed errors (pkg/errors, MERCH codes), never as raw sql errors.
type Store interface {
	// SearchByName returns candidates whose star-stripped stored name
	// matches the fragment (exact, then substring), deduplicated by
	// merchant id.
	SearchByName(ctx context.Context, fragment string) ([]Candidate, error)

	// SearchByPrefix returns candidates whose stored name starts with the
	// first two characters of the fragment. Used by the relaxed tier.
	SearchByPrefix(ctx context.Context, prefix string) ([]Candidate, error)

	// GetLatest returns the latest-period record for a merchant id.
	GetLatest(ctx context.Context, merchantID string) (*Record, error)

	// History returns all records for a merchant id ordered by period
	// descending (latest first).
	History(ctx context.Context, merchantID string) ([]Record, error)

	// ListPeers returns the latest records of other merchants sharing
	// (industry, tradeAreaKey), excluding merchantID.
	ListPeers(ctx context.Context, industry, tradeAreaKey, excludeID string) ([]Record, error)

	// ListNeighbors returns the latest records of merchants in the same
	// trade area but a different industry, excluding merchantID. Feeds
	// partner-candidate ranking.
	ListNeighbors(ctx context.Context, tradeAreaKey, excludeIndustry, excludeID string) ([]Record, error)
}

// TradeAreaStore is the trade-area query contract.
type TradeAreaStore interface {
	// Latest returns the latest-period aggregate for (key, industry).
	Latest(ctx context.Context, key, industry string) (*TradeArea, error)
}

// zero-width and whitespace characters stripped during name normalisation.
var nameStripper = strings.NewReplacer(
	" ", "",
	"\t", "",
	"\u200B", "",
	"\uFEFF", "",
	"\u00A0", "",
)

// NormalizeName strips whitespace and zero-width characters from a merchant
// name so masked display names compare consistently.
func NormalizeName(name string) string {
	return nameStripper.Replace(strings.TrimSpace(name))
}

// StripMask removes wildcard mask characters from a name fragment. Merchant
// names are displayed with only the first 1–2 characters visible, the rest
// masked with '*'.
func StripMask(name string) string {
	return strings.ReplaceAll(name, "*", "")
}

// NormalizeRatio maps a raw percentage-or-ratio value onto [0,1]:
// NaN and negatives collapse to 0, values in (1,100] are treated as
// percentages and divided by 100, values above 100 clamp to 1.
func NormalizeRatio(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v <= 1:
		return v
	case v <= 100:
		return v / 100
	default:
		return 1
	}
}
