package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// Issue-diagnosis thresholds. Percentage-point rules over three-month deltas
// and peer comparisons; each rule is independent and all are evaluated.
const (
	issueDeltaMonths    = 3
	issueDeltaThreshPP  = 5.0  // |3-month delta| beyond this is notable
	issuePeerDiffPP     = 10.0 // |merchant - peer mean| beyond this is notable
	issueDeliveryHeavy  = 0.65 // delivery share at/above this dominates the mix
	issueLoyalLow       = 0.18 // loyal share below this signals attrition risk
	issueRiskBase       = 50
	issueRiskPerFlag    = 5
	issueRiskCap        = 100
)

// issueBuilder derives decline-diagnosis metrics and a composite risk score.
type issueBuilder struct{}

func (issueBuilder) Name() string { return "issue" }

func (issueBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	// Three-month movement of the key shares.
	deltaFields := []struct {
		key   string
		field string
	}{
		{"재방문_비중_3개월_변화_pp", merchant.FieldLoyalShare},
		{"신규_비중_3개월_변화_pp", merchant.FieldNewShare},
		{"배달_비중_3개월_변화_pp", merchant.FieldDeliveryShare},
	}
	for _, df := range deltaFields {
		if d, ok := deltaPP(in.History, df.field, issueDeltaMonths); ok {
			out.Metrics[df.key] = round2(d)
			if math.Abs(d) >= issueDeltaThreshPP {
				direction := "상승"
				if d < 0 {
					direction = "하락"
				}
				out.Abnormal[df.key] = fmt.Sprintf("최근 3개월간 %s (%s)", direction, fmtPP(d))
			}
		}
	}

	// Peer-relative position.
	peers := in.Context.Peers
	peerFields := []struct {
		key   string
		field string
	}{
		{"재방문_비중_동종대비_pp", merchant.FieldLoyalShare},
		{"신규_비중_동종대비_pp", merchant.FieldNewShare},
		{"배달_비중_동종대비_pp", merchant.FieldDeliveryShare},
	}
	for _, pf := range peerFields {
		mine, ok1 := rec.Get(pf.field)
		avg, ok2 := peerMean(peers, pf.field)
		if !ok1 || !ok2 {
			continue
		}
		diff := (mine - avg) * 100
		out.Metrics[pf.key] = round2(diff)
		if math.Abs(diff) >= issuePeerDiffPP {
			out.Abnormal[pf.key] = fmt.Sprintf("동일 상권·업종 평균과 %s 차이", fmtPP(diff))
		}
	}

	// Absolute-level rules.
	if v, ok := rec.Get(merchant.FieldDeliveryShare); ok && v >= issueDeliveryHeavy {
		out.Abnormal["배달_의존"] = fmt.Sprintf("배달 매출 비중이 %.0f%%로 과도하게 높습니다", v*100)
		out.Signals = append(out.Signals, "CHANNEL_MIX_ALERT")
	}
	if v, ok := rec.Get(merchant.FieldLoyalShare); ok && v < issueLoyalLow {
		out.Abnormal["단골_부족"] = fmt.Sprintf("재방문 고객 비중이 %.0f%%로 낮습니다", v*100)
		out.Signals = append(out.Signals, "RETENTION_ALERT")
	}

	risk := issueRiskBase + issueRiskPerFlag*len(out.Abnormal)
	if risk > issueRiskCap {
		risk = issueRiskCap
	}
	out.Metrics["리스크_점수"] = risk
	return out, nil
}
