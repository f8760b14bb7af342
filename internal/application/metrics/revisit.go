package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// Revisit (retention) thresholds. Empirically fixed defaults; see configs
// for overrides.
const (
	revisitLoyalYoYDropPP    = -3.68  // YoY loyal-share drop beyond this flags attrition
	revisitLoyal3mDeltaPP    = -5.25  // 3-month loyal-share drop
	revisitNewDiffPeerAbsPP  = 8.0    // |new-customer share - peer mean|
	revisitDelivDiffPeerPP   = 14.76  // |delivery share - peer mean|
	revisitSalesDevAbsPP     = 12.0   // |sales MoM|
	revisitCountDevAbsPP     = 10.0   // |count MoM|
)

// revisitBuilder derives retention metrics. The loyal-share gap versus the
// peer mean is always surfaced when computable, flagged or not.
type revisitBuilder struct{}

func (revisitBuilder) Name() string { return "revisit" }

func (revisitBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	// Loyal-share gap versus peers: the builder's headline number.
	if mine, ok := rec.Get(merchant.FieldLoyalShare); ok {
		if avg, ok := peerMean(in.Context.Peers, merchant.FieldLoyalShare); ok {
			gap := (mine - avg) * 100
			out.Metrics["단골비중_차이_pp"] = round2(gap)
			if gap <= revisitLoyalYoYDropPP {
				out.Abnormal["단골비중_차이_pp"] = fmt.Sprintf("동종 평균 대비 단골 비중이 %s 낮습니다", fmtPP(gap))
				out.Signals = append(out.Signals, "RETENTION_ALERT")
			}
		}
	}

	// YoY movement of the loyal share, taken directly from the ingested
	// year-over-year column when present.
	if v, ok := rec.Get(merchant.FieldLoyalShareYoY); ok {
		yoyPP := v * 100
		out.Metrics["단골비중_전년동월_변화_pp"] = round2(yoyPP)
		if yoyPP <= revisitLoyalYoYDropPP {
			out.Abnormal["단골비중_전년동월_변화_pp"] = fmt.Sprintf("전년 동월 대비 단골 비중 %s", fmtPP(yoyPP))
			out.Signals = append(out.Signals, "RETENTION_ALERT")
		}
	}

	// Three-month movement.
	if d, ok := deltaPP(in.History, merchant.FieldLoyalShare, 3); ok {
		out.Metrics["단골비중_3개월_변화_pp"] = round2(d)
		if d <= revisitLoyal3mDeltaPP {
			out.Abnormal["단골비중_3개월_변화_pp"] = fmt.Sprintf("최근 3개월간 단골 비중 %s", fmtPP(d))
			out.Signals = append(out.Signals, "RETENTION_ALERT")
		}
	}

	// New-customer share versus peers; a high surplus is a conversion
	// opportunity, not a problem, but it is flagged for the prompt.
	if mine, ok := rec.Get(merchant.FieldNewShare); ok {
		if avg, ok := peerMean(in.Context.Peers, merchant.FieldNewShare); ok {
			diff := (mine - avg) * 100
			out.Metrics["신규비중_동종대비_pp"] = round2(diff)
			if math.Abs(diff) >= revisitNewDiffPeerAbsPP {
				out.Abnormal["신규비중_동종대비_pp"] = fmt.Sprintf("신규 고객 비중이 동종 평균과 %s 차이", fmtPP(diff))
				if diff > 0 {
					out.Signals = append(out.Signals, "NEW_CUSTOMER_FOCUS")
				}
			}
		}
	}

	// Delivery-mix deviation versus peers.
	if mine, ok := rec.Get(merchant.FieldDeliveryShare); ok {
		if avg, ok := peerMean(in.Context.Peers, merchant.FieldDeliveryShare); ok {
			diff := (mine - avg) * 100
			out.Metrics["배달비중_동종대비_pp"] = round2(diff)
			if math.Abs(diff) >= revisitDelivDiffPeerPP {
				out.Abnormal["배달비중_동종대비_pp"] = fmt.Sprintf("배달 매출 비중이 동종 평균과 %s 차이", fmtPP(diff))
				out.Signals = append(out.Signals, "CHANNEL_MIX_ALERT")
			}
		}
	}

	// Short-term volatility of sales and transaction count.
	if v, ok := rec.Get(merchant.FieldSalesMoM); ok {
		devPP := v * 100
		out.Metrics["매출_증감_pp"] = round2(devPP)
		if math.Abs(devPP) >= revisitSalesDevAbsPP {
			out.Abnormal["매출_증감_pp"] = fmt.Sprintf("전월 대비 매출 %s", fmtPP(devPP))
		}
	}
	if v, ok := rec.Get(merchant.FieldCountMoM); ok {
		devPP := v * 100
		out.Metrics["매출건수_증감_pp"] = round2(devPP)
		if math.Abs(devPP) >= revisitCountDevAbsPP {
			out.Abnormal["매출건수_증감_pp"] = fmt.Sprintf("전월 대비 결제 건수 %s", fmtPP(devPP))
		}
	}

	return out, nil
}
