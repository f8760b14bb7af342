package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

func TestIssue_ThreeMonthDelta(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.18}}
	history := []merchant.Record{
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.18}},
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.21}},
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.23}},
		{Numeric: map[string]float64{merchant.FieldLoyalShare: 0.25}},
	}
	in := inputWith(rec, nil)
	in.History = history

	got, err := (issueBuilder{}).Build(context.Background(), in)
	require.NoError(t, err)

	d := got.Metrics["재방문_비중_3개월_변화_pp"].(float64)
	assert.InDelta(t, -7.0, d, 0.01)
	assert.Contains(t, got.Abnormal, "재방문_비중_3개월_변화_pp")
	assert.Contains(t, got.Abnormal["재방문_비중_3개월_변화_pp"], "하락")
}

func TestIssue_PeerComparison(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{merchant.FieldDeliveryShare: 0.50}}
	peers := []merchant.Record{
		{Numeric: map[string]float64{merchant.FieldDeliveryShare: 0.30}},
	}

	got, err := (issueBuilder{}).Build(context.Background(), inputWith(rec, nil, peers...))
	require.NoError(t, err)

	diff := got.Metrics["배달_비중_동종대비_pp"].(float64)
	assert.InDelta(t, 20.0, diff, 0.01)
	assert.Contains(t, got.Abnormal, "배달_비중_동종대비_pp")
}

func TestIssue_AbsoluteLevelRules(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{
		merchant.FieldDeliveryShare: 0.70,
		merchant.FieldLoyalShare:    0.12,
	}}

	got, err := (issueBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)

	assert.Contains(t, got.Abnormal, "배달_의존")
	assert.Contains(t, got.Abnormal, "단골_부족")
	assert.Contains(t, got.Signals, "CHANNEL_MIX_ALERT")
	assert.Contains(t, got.Signals, "RETENTION_ALERT")
}

func TestIssue_RiskScore(t *testing.T) {
	// No flags: base score.
	rec := &merchant.Record{Numeric: map[string]float64{}}
	got, err := (issueBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)
	assert.Equal(t, 50, got.Metrics["리스크_점수"])

	// Two flags: 50 + 2*5.
	rec = &merchant.Record{Numeric: map[string]float64{
		merchant.FieldDeliveryShare: 0.70,
		merchant.FieldLoyalShare:    0.12,
	}}
	got, err = (issueBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)
	assert.Equal(t, 60, got.Metrics["리스크_점수"])
}
