package metrics

import (
	"context"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// snsBuilder derives audience and channel metrics for social-media
// marketing: who the customers are, when they come, and which channels fit.
type snsBuilder struct{}

func (snsBuilder) Name() string { return "sns" }

func (snsBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	if top := topDemographics(rec, 3); len(top) > 0 {
		out.Metrics["주요_고객층"] = top
		out.Metrics["주력_타깃"] = top[0].Field
		if hints := channelHints(top[0].Field); len(hints) > 0 {
			out.Metrics["추천_채널"] = hints
		}
	}

	addIfPresent(out.Metrics, "주중_매출_비중", rec, merchant.FieldWeekdaySales)
	addIfPresent(out.Metrics, "주말_매출_비중", rec, merchant.FieldWeekendSales)

	if bucket, share, ok := busiestBucket(rec); ok {
		out.Metrics["피크_시간대"] = bucket
		out.Metrics["피크_시간대_매출_비중"] = share
	}

	area := in.Context.TradeArea
	addAreaIfPresent(out.Metrics, "상권_거주인구", area, merchant.AreaFieldResidentPop)
	addAreaIfPresent(out.Metrics, "상권_직장인구", area, merchant.AreaFieldWorkerPop)
	addAreaIfPresent(out.Metrics, "상권_유동인구", area, merchant.AreaFieldFootTraffic)

	return out, nil
}

// channelHints maps the dominant demographic bucket to the social channels
// that skew toward it.
func channelHints(field string) []string {
	switch field {
	case merchant.FieldMaleUnder20, merchant.FieldFemaleUnder20:
		return []string{"인스타그램 릴스", "틱톡"}
	case merchant.FieldMale30, merchant.FieldFemale30:
		return []string{"인스타그램", "네이버 플레이스"}
	case merchant.FieldMale40, merchant.FieldFemale40:
		return []string{"네이버 블로그", "카카오톡 채널"}
	case merchant.FieldMale50, merchant.FieldFemale50,
		merchant.FieldMaleOver60, merchant.FieldFemaleOver60:
		return []string{"카카오톡 채널", "네이버 밴드"}
	}
	return nil
}

// busiestBucket returns the hourly field with the largest sales share.
func busiestBucket(rec *merchant.Record) (string, float64, bool) {
	var bestField string
	var bestShare float64
	for _, f := range merchant.HourlyFields {
		if v, ok := rec.Get(f); ok && (bestField == "" || v > bestShare) {
			bestField, bestShare = f, v
		}
	}
	return bestField, bestShare, bestField != ""
}
