package merchant

import "strings"

// Canonical numeric field names for merchant records. These mirror the
// ingested card-data column names; metric builders project fixed subsets of
// them and the repositories populate them at scan time.
const (
	FieldLoyalShare      = "재방문_고객_비중"
	FieldNewShare        = "신규_고객_비중"
	FieldDeliveryShare   = "배달_매출_비중"
	FieldCancelRate      = "취소율"
	FieldSalesRank       = "매출_순위_백분위"
	FieldCountRank       = "매출건수_순위_백분위"
	FieldUnitPriceRank   = "건단가_순위_백분위"
	FieldSalesMoM        = "매출_증감률"
	FieldCountMoM        = "매출건수_증감률"
	FieldLoyalShareYoY   = "재방문_고객_비중_전년동월차"
	FieldResidentShare   = "거주_고객_비중"
	FieldWorkerShare     = "직장_고객_비중"
	FieldFloatingShare   = "유동인구_고객_비중"
	FieldWeekdaySales    = "주중_매출_비중"
	FieldWeekendSales    = "주말_매출_비중"
	FieldLatitude        = "위도"
	FieldLongitude       = "경도"
)

// Gender-age demographic share fields, ten buckets.
const (
	FieldMaleUnder20   = "남성_20대이하_고객_비중"
	FieldMale30        = "남성_30대_고객_비중"
	FieldMale40        = "남성_40대_고객_비중"
	FieldMale50        = "남성_50대_고객_비중"
	FieldMaleOver60    = "남성_60대이상_고객_비중"
	FieldFemaleUnder20 = "여성_20대이하_고객_비중"
	FieldFemale30      = "여성_30대_고객_비중"
	FieldFemale40      = "여성_40대_고객_비중"
	FieldFemale50      = "여성_50대_고객_비중"
	FieldFemaleOver60  = "여성_60대이상_고객_비중"
)

// DemographicFields lists the ten gender-age buckets in display order.
var DemographicFields = []string{
	FieldMaleUnder20, FieldMale30, FieldMale40, FieldMale50, FieldMaleOver60,
	FieldFemaleUnder20, FieldFemale30, FieldFemale40, FieldFemale50, FieldFemaleOver60,
}

// Hourly sales-share fields used to find the busiest time bucket.
const (
	FieldSalesMorning   = "시간대_06_11_매출_비중"
	FieldSalesLunch     = "시간대_11_14_매출_비중"
	FieldSalesAfternoon = "시간대_14_17_매출_비중"
	FieldSalesEvening   = "시간대_17_21_매출_비중"
	FieldSalesNight     = "시간대_21_24_매출_비중"
)

// HourlyFields lists the time buckets in chronological order.
var HourlyFields = []string{
	FieldSalesMorning, FieldSalesLunch, FieldSalesAfternoon, FieldSalesEvening, FieldSalesNight,
}

// IsRatioField reports whether a numeric field carries a share in [0,1].
// Repositories normalise these on scan; signed deltas, ranks expressed as
// percentiles of raw position, coordinates and counts pass through untouched.
func IsRatioField(name string) bool {
	if strings.HasSuffix(name, "_비중") {
		return true
	}
	switch name {
	case FieldCancelRate, AreaFieldCloseRate:
		return true
	}
	return false
}

// Canonical numeric field names for trade-area aggregates.
const (
	AreaFieldVitality     = "상권_활성도"
	AreaFieldCloseRate    = "폐업률"
	AreaFieldFootTraffic  = "유동인구"
	AreaFieldPeerSalesAvg = "동일업종_매출_평균"
	AreaFieldResidentPop  = "거주인구"
	AreaFieldWorkerPop    = "직장인구"
	AreaFieldPeakHour     = "피크_시간대"
	AreaFieldDominantAge  = "주요_연령대"
)
