package metrics

import (
	"context"
	"sort"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

// Cooperation score weights: customer-origin balance carries more weight
// than trade-area stability.
const (
	coopBalanceWeight   = 0.5
	coopStabilityWeight = 0.3
	coopClosePenalty    = 0.5
	coopMaxPartners     = 5
)

// cooperationBuilder scores the merchant's partnership potential and lists
// candidate partners from the cross-industry neighbor set.
type cooperationBuilder struct{}

func (cooperationBuilder) Name() string { return "cooperation" }

func (b cooperationBuilder) Build(_ context.Context, in Input) (Result, error) {
	rec, err := requireMerchant(in)
	if err != nil {
		return Result{}, err
	}
	out := newResult()

	if score, ok := coopScore(rec, in.Context.TradeArea); ok {
		out.Metrics["협업_잠재력_점수"] = score
	} else {
		// A derivation failure yields an explicit nil, never a fabricated
		// default.
		out.Metrics["협업_잠재력_점수"] = nil
	}

	addAreaIfPresent(out.Metrics, "상권_활성도", in.Context.TradeArea, merchant.AreaFieldVitality)
	addAreaIfPresent(out.Metrics, "상권_폐업률", in.Context.TradeArea, merchant.AreaFieldCloseRate)

	if partners := candidatePartners(rec, in.Context.Neighbors, in.Context.TradeArea); len(partners) > 0 {
		out.Metrics["협업_후보"] = partners
	}
	return out, nil
}

// coopScore combines customer-origin balance and trade-area stability into a
// [0,1] score. All three origin shares and both area fields must be present;
// otherwise the score is not computable.
func coopScore(rec *merchant.Record, area *merchant.TradeArea) (float64, bool) {
	res, ok1 := rec.Get(merchant.FieldResidentShare)
	wrk, ok2 := rec.Get(merchant.FieldWorkerShare)
	flt, ok3 := rec.Get(merchant.FieldFloatingShare)
	if !ok1 || !ok2 || !ok3 || area == nil {
		return 0, false
	}
	vitality, ok4 := area.Get(merchant.AreaFieldVitality)
	closeRate, ok5 := area.Get(merchant.AreaFieldCloseRate)
	if !ok4 || !ok5 {
		return 0, false
	}

	balance := clamp01(1 - stddev(res, wrk, flt))
	stability := clamp01(vitality/100 - closeRate*coopClosePenalty)
	return clamp01(round2(balance*coopBalanceWeight + stability*coopStabilityWeight)), true
}

// partnerCandidate is one suggested collaboration partner.
type partnerCandidate struct {
	MerchantID string  `json:"merchant_id"`
	Name       string  `json:"merchant_name"`
	Industry   string  `json:"industry"`
	Fit        float64 `json:"fit"`
}

// candidatePartners ranks cross-industry neighbors of the same trade area
// by complementary customer mix: a partner whose origin mix differs most
// from the merchant's reaches customers the merchant does not. Same-industry
// entries are skipped as a guard against competitors in the input.
func candidatePartners(rec *merchant.Record, neighbors []merchant.Record, area *merchant.TradeArea) []partnerCandidate {
	myRes, ok1 := rec.Get(merchant.FieldResidentShare)
	myWrk, ok2 := rec.Get(merchant.FieldWorkerShare)
	myFlt, ok3 := rec.Get(merchant.FieldFloatingShare)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}

	out := make([]partnerCandidate, 0, len(neighbors))
	for i := range neighbors {
		p := &neighbors[i]
		if p.Industry == rec.Industry {
			continue
		}
		pRes, ok1 := p.Get(merchant.FieldResidentShare)
		pWrk, ok2 := p.Get(merchant.FieldWorkerShare)
		pFlt, ok3 := p.Get(merchant.FieldFloatingShare)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		complement := (abs(myRes-pRes) + abs(myWrk-pWrk) + abs(myFlt-pFlt)) / 3
		fit := complement
		if score, ok := coopScore(p, area); ok {
			fit = round2(complement*0.5 + score*0.5)
		}
		out = append(out, partnerCandidate{
			MerchantID: p.MerchantID,
			Name:       p.Name,
			Industry:   p.Industry,
			Fit:        fit,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fit != out[j].Fit {
			return out[i].Fit > out[j].Fit
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > coopMaxPartners {
		out = out[:coopMaxPartners]
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
