package metrics

import (
	"context"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// coreBuilder projects the base field set every intent shares: percentile
// ranks, customer-mix shares and trade-area vitality.
type coreBuilder struct{}

func (coreBuilder) Name() string { return "core" }

func (coreBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	addIfPresent(out.Metrics, "매출_순위_백분위", rec, merchant.FieldSalesRank)
	addIfPresent(out.Metrics, "매출건수_순위_백분위", rec, merchant.FieldCountRank)
	addIfPresent(out.Metrics, "건단가_순위_백분위", rec, merchant.FieldUnitPriceRank)
	addIfPresent(out.Metrics, "재방문_고객_비중", rec, merchant.FieldLoyalShare)
	addIfPresent(out.Metrics, "신규_고객_비중", rec, merchant.FieldNewShare)
	addIfPresent(out.Metrics, "배달_매출_비중", rec, merchant.FieldDeliveryShare)
	addIfPresent(out.Metrics, "거주_고객_비중", rec, merchant.FieldResidentShare)
	addIfPresent(out.Metrics, "직장_고객_비중", rec, merchant.FieldWorkerShare)
	addIfPresent(out.Metrics, "유동인구_고객_비중", rec, merchant.FieldFloatingShare)

	area := in.Context.TradeArea
	addAreaIfPresent(out.Metrics, "상권_활성도", area, merchant.AreaFieldVitality)
	addAreaIfPresent(out.Metrics, "상권_폐업률", area, merchant.AreaFieldCloseRate)
	addAreaIfPresent(out.Metrics, "상권_유동인구", area, merchant.AreaFieldFootTraffic)
	addAreaIfPresent(out.Metrics, "상권_피크_시간대", area, merchant.AreaFieldPeakHour)

	if top := topDemographics(rec, 3); len(top) > 0 {
		out.Metrics["주요_고객층"] = top
	}
	return out, nil
}

// demographicEntry pairs a bucket name with its share for ranking.
type demographicEntry struct {
	Field string  `json:"field"`
	Share float64 `json:"share"`
}

// topDemographics returns the n largest gender-age buckets present on the
// record, descending by share.
func topDemographics(rec *merchant.Record, n int) []demographicEntry {
	entries := make([]demographicEntry, 0, len(merchant.DemographicFields))
	for _, f := range merchant.DemographicFields {
		if v, ok := rec.Get(f); ok {
			entries = append(entries, demographicEntry{Field: f, Share: v})
		}
	}
	// insertion sort, the slice never exceeds ten entries
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Share > entries[j-1].Share; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
