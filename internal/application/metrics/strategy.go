package metrics

import (
	"context"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// Cancel-rate bands for the strategy projection.
const (
	cancelRateHigh = 0.10
	cancelRateMid  = 0.05
)

// strategyBuilder derives operational-strategy hints: cancel-rate band and
// customer-mobility fit. Its metric map doubles as the forecaster feature
// row.
type strategyBuilder struct{}

func (strategyBuilder) Name() string { return "strategy" }

func (strategyBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	if v, ok := rec.Get(merchant.FieldCancelRate); ok {
		out.Metrics["취소율"] = v
		out.Metrics["취소율_구간"] = cancelBand(v)
		if v >= cancelRateHigh {
			out.Abnormal["취소율"] = "취소율이 10% 이상으로 운영 점검이 필요합니다"
		}
	}

	// Mobility fit: floating-population-driven merchants lean toward
	// impulse channels, residential ones toward loyalty programs.
	flt, okF := rec.Get(merchant.FieldFloatingShare)
	res, okR := rec.Get(merchant.FieldResidentShare)
	if okF && okR {
		switch {
		case flt > res+0.2:
			out.Metrics["고객_이동성_특성"] = "유동인구_중심"
		case res > flt+0.2:
			out.Metrics["고객_이동성_특성"] = "거주민_중심"
		default:
			out.Metrics["고객_이동성_특성"] = "혼합형"
		}
	}

	return out, nil
}

func cancelBand(v float64) string {
	switch {
	case v >= cancelRateHigh:
		return "높음"
	case v >= cancelRateMid:
		return "보통"
	default:
		return "낮음"
	}
}

// FeatureRow flattens a merchant record into the forecaster's numeric
// feature row.
func FeatureRow(rec *merchant.Record) map[string]float64 {
	if rec == nil {
		return nil
	}
	out := make(map[string]float64, len(rec.Numeric))
	for k, v := range rec.Numeric {
		out[k] = v
	}
	return out
}
