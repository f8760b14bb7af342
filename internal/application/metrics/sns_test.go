package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
)

func TestChannelHints(t *testing.T) {
	cases := []struct {
		field string
		want  []string
	}{
		{merchant.FieldFemaleUnder20, []string{"인스타그램 릴스", "틱톡"}},
		{merchant.FieldMale30, []string{"인스타그램", "네이버 플레이스"}},
		{merchant.FieldFemale40, []string{"네이버 블로그", "카카오톡 채널"}},
		{merchant.FieldMaleOver60, []string{"카카오톡 채널", "네이버 밴드"}},
		{"없는_필드", nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, channelHints(tc.field), "field %s", tc.field)
	}
}

func TestBusiestBucket(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{
		merchant.FieldSalesLunch:   0.30,
		merchant.FieldSalesEvening: 0.45,
		merchant.FieldSalesNight:   0.10,
	}}
	bucket, share, ok := busiestBucket(rec)
	require.True(t, ok)
	assert.Equal(t, merchant.FieldSalesEvening, bucket)
	assert.Equal(t, 0.45, share)

	_, _, ok = busiestBucket(&merchant.Record{Numeric: map[string]float64{}})
	assert.False(t, ok)
}

func TestSNS_TargetsAndChannels(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{
		merchant.FieldFemaleUnder20: 0.35,
		merchant.FieldFemale30:      0.25,
		merchant.FieldMale30:        0.15,
		merchant.FieldWeekendSales:  0.62,
		merchant.FieldSalesEvening:  0.40,
	}}
	area := &merchant.TradeArea{Numeric: map[string]float64{
		merchant.AreaFieldFootTraffic: 52000,
	}}

	got, err := (snsBuilder{}).Build(context.Background(), inputWith(rec, area))
	require.NoError(t, err)

	assert.Equal(t, merchant.FieldFemaleUnder20, got.Metrics["주력_타깃"])
	assert.Equal(t, []string{"인스타그램 릴스", "틱톡"}, got.Metrics["추천_채널"])
	assert.Equal(t, 0.62, got.Metrics["주말_매출_비중"])
	assert.Equal(t, merchant.FieldSalesEvening, got.Metrics["피크_시간대"])
	assert.Equal(t, 52000.0, got.Metrics["상권_유동인구"])

	top, ok := got.Metrics["주요_고객층"].([]demographicEntry)
	require.True(t, ok)
	require.Len(t, top, 3)
	assert.Equal(t, merchant.FieldFemaleUnder20, top[0].Field)
}

func TestSNS_MissingDemographicsDropTargets(t *testing.T) {
	rec := &merchant.Record{Numeric: map[string]float64{
		merchant.FieldWeekdaySales: 0.55,
	}}

	got, err := (snsBuilder{}).Build(context.Background(), inputWith(rec, nil))
	require.NoError(t, err)

	assert.NotContains(t, got.Metrics, "주력_타깃")
	assert.NotContains(t, got.Metrics, "추천_채널")
	assert.Equal(t, 0.55, got.Metrics["주중_매출_비중"])
}
