package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

func TestRevisit_PeerGapScenario(t *testing.T) {
	// Merchant 761947ABD9 with loyal share 15% against a peer average of
	// 28% must surface a gap of about -13pp, flagged abnormal.
	rec := &merchant.Record{
		MerchantID: "761947ABD9",
		Numeric:    map[string]float64{merchant.FieldLoyalShare: 0.15},
	}
	peers := []merchant.Record{
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.30}},
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.26}},
	}

	got, err := (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil, peers...))
	require.NoError(t, err)

	gap, ok := got.Metrics["단골비중_차이_pp"].(float64)
	require.True(t, ok)
	assert.InDelta(t, -13.0, gap, 0.01)
	assert.Contains(t, got.Abnormal, "단골비중_차이_pp")
	assert.Contains(t, got.Signals, "RETENTION_ALERT")
}

func TestRevisit_GapAlwaysSurfaced(t *testing.T) {
	// A small positive gap is surfaced but not flagged.
	rec := &merchant.Record{
		Numeric: map[string]float64{merchant.FieldLoyalShare: 0.30},
	}
	peers := []merchant.Record{
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.28}},
	}

	got, err := (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil, peers...))
	require.NoError(t, err)

	assert.Contains(t, got.Metrics, "단골비중_차이_pp")
	assert.NotContains(t, got.Abnormal, "단골비중_차이_pp")
}

func TestRevisit_YoYDropThreshold(t *testing.T) {
	// -3.68pp is the trigger boundary.
	rec := &merchant.Record{
		Numeric: map[string]float64{merchant.FieldLoyalShareYoY: -0.0368},
	}
	got, err := (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)
	assert.Contains(t, got.Abnormal, "단골비중_전년동월_변화_pp")

	rec = &merchant.Record{
		Numeric: map[string]float64{merchant.FieldLoyalShareYoY: -0.02},
	}
	got, err = (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)
	assert.NotContains(t, got.Abnormal, "단골비중_전년동월_변화_pp")
}

func TestRevisit_AllRulesEvaluated(t *testing.T) {
	// Multiple simultaneous abnormalities must all surface.
	rec := &merchant.Record{
		Numeric: map[string]float64{
			merchant.FieldLoyalShare:    0.10,
			merchant.FieldLoyalShareYoY: -0.06,
			merchant.FieldSalesMoM:      -0.15,
			merchant.FieldCountMoM:      -0.12,
		},
	}
	peers := []merchant.Record{
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.30}},
	}

	got, err := (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil, peers...))
	require.NoError(t, err)

	for _, key := range []string{
		"단골비중_차이_pp", "단골비중_전년동월_변화_pp", "매출_증감_pp", "매출건수_증감_pp",
	} {
		assert.Contains(t, got.Abnormal, key)
	}
}

func TestRevisit_NullSafety(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{}}
	got, err := (revisitBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)
	assert.Empty(t, got.Metrics)
	assert.Empty(t, got.Abnormal)
}
