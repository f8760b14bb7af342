// Package weather implements the season builder's forecast provider on top
// of the KMA(기상청) short-range forecast API.
package weather

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/storepilot/merchant-advisor/internal/application/metrics"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Provider calls the 단기예보 (getVilageFcst) endpoint and aggregates the
// hourly rows into daily outlooks.
type Provider struct {
	cfg    config.WeatherConfig
	hc     *http.Client
	logger logging.Logger
	now    func() time.Time
}

// New constructs the provider. Configured reports whether an API key is set;
// an unconfigured provider should not be wired into the metrics registry.
func New(cfg config.WeatherConfig, logger logging.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("weather"),
		now:    time.Now,
	}
}

// Configured reports whether the provider can be used.
func (p *Provider) Configured() bool { return p.cfg.APIKey != "" }

type kmaResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []kmaItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type kmaItem struct {
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

// Precipitation-type codes of the 단기예보 PTY category.
var ptyText = map[string]string{
	"0": "없음",
	"1": "비",
	"2": "비/눈",
	"3": "눈",
	"5": "빗방울",
	"6": "빗방울/눈날림",
	"7": "눈날림",
}

// Forecast returns up to days daily outlooks for the coordinate, starting
// today. The 0500 base issue covers the full short-range window.
func (p *Provider) Forecast(ctx context.Context, lat, lon float64, days int) ([]metrics.DayForecast, error) {
	nx, ny := toGrid(lat, lon)

	q := url.Values{}
	q.Set("authKey", p.cfg.APIKey)
	q.Set("numOfRows", "300")
	q.Set("pageNo", "1")
	q.Set("dataType", "JSON")
	q.Set("base_date", p.now().Format("20060102"))
	q.Set("base_time", "0500")
	q.Set("nx", strconv.Itoa(nx))
	q.Set("ny", strconv.Itoa(ny))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "build forecast request")
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "forecast request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeExternalService, "forecast endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "read forecast response")
	}

	var parsed kmaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode forecast response")
	}
	if h := parsed.Response.Header; h.ResultCode != "" && h.ResultCode != "00" {
		return nil, errors.Newf(errors.ErrCodeExternalService, "forecast error %s: %s", h.ResultCode, h.ResultMsg)
	}

	return p.aggregate(parsed.Response.Body.Items.Item, days), nil
}

type dayAccum struct {
	date      time.Time
	tmpMin    float64
	tmpMax    float64
	tmnSet    bool
	tmn       float64
	tmxSet    bool
	tmx       float64
	rainHours int
	ptyCounts map[string]int
}

// aggregate folds hourly TMP/TMN/TMX/PTY rows into per-day outlooks, keeping
// only dates within the requested window.
func (p *Provider) aggregate(items []kmaItem, days int) []metrics.DayForecast {
	cutoff := p.now().AddDate(0, 0, days)
	byDate := map[string]*dayAccum{}

	for _, it := range items {
		d, err := time.ParseInLocation("20060102", it.FcstDate, time.Local)
		if err != nil || !d.Before(cutoff) {
			continue
		}
		acc := byDate[it.FcstDate]
		if acc == nil {
			acc = &dayAccum{date: d, tmpMin: math.Inf(1), tmpMax: math.Inf(-1), ptyCounts: map[string]int{}}
			byDate[it.FcstDate] = acc
		}

		switch it.Category {
		case "TMP":
			if v, err := strconv.ParseFloat(it.FcstValue, 64); err == nil {
				acc.tmpMin = math.Min(acc.tmpMin, v)
				acc.tmpMax = math.Max(acc.tmpMax, v)
			}
		case "TMN":
			if v, err := strconv.ParseFloat(it.FcstValue, 64); err == nil {
				acc.tmnSet, acc.tmn = true, v
			}
		case "TMX":
			if v, err := strconv.ParseFloat(it.FcstValue, 64); err == nil {
				acc.tmxSet, acc.tmx = true, v
			}
		case "PTY":
			acc.ptyCounts[it.FcstValue]++
			if it.FcstValue != "0" && it.FcstValue != "" {
				acc.rainHours++
			}
		}
	}

	out := make([]metrics.DayForecast, 0, len(byDate))
	for _, acc := range byDate {
		df := metrics.DayForecast{
			Date:      acc.date,
			RainHours: acc.rainHours,
			Summary:   dominantPty(acc.ptyCounts),
		}
		// Dedicated min/max categories only appear for some hours; fall
		// back to the hourly temperature envelope.
		switch {
		case acc.tmnSet:
			df.TempMinC = acc.tmn
		case !math.IsInf(acc.tmpMin, 1):
			df.TempMinC = acc.tmpMin
		}
		switch {
		case acc.tmxSet:
			df.TempMaxC = acc.tmx
		case !math.IsInf(acc.tmpMax, -1):
			df.TempMaxC = acc.tmpMax
		}
		out = append(out, df)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > days {
		out = out[:days]
	}
	return out
}

// dominantPty picks the most frequent precipitation type, preferring any
// precipitation over "none" so a mixed day reads as rainy.
func dominantPty(counts map[string]int) string {
	best, bestCount := "0", -1
	for code, n := range counts {
		if code == "0" {
			continue
		}
		if n > bestCount || (n == bestCount && code < best) {
			best, bestCount = code, n
		}
	}
	if bestCount <= 0 {
		if _, ok := counts["0"]; ok {
			return ptyText["0"]
		}
		return "정보없음"
	}
	if txt, ok := ptyText[best]; ok {
		return txt
	}
	return "정보없음"
}

// Lambert conformal conic projection constants of the KMA forecast grid.
const (
	gridRadiusKm = 6371.00877
	gridSpacing  = 5.0
	gridSlat1    = 30.0
	gridSlat2    = 60.0
	gridOlon     = 126.0
	gridOlat     = 38.0
	gridXO       = 43
	gridYO       = 136
)

// toGrid converts a WGS84 coordinate to the KMA forecast grid cell.
func toGrid(lat, lon float64) (nx, ny int) {
	const degrad = math.Pi / 180.0
	re := gridRadiusKm / gridSpacing
	slat1 := gridSlat1 * degrad
	slat2 := gridSlat2 * degrad
	olon := gridOlon * degrad
	olat := gridOlat * degrad

	sn := math.Log(math.Cos(slat1)/math.Cos(slat2)) /
		math.Log(math.Tan(math.Pi/4.0+slat2/2.0)/math.Tan(math.Pi/4.0+slat1/2.0))
	sf := math.Pow(math.Tan(math.Pi/4.0+slat1/2.0), sn) * math.Cos(slat1) / sn
	ro := re * sf / math.Pow(math.Tan(math.Pi/4.0+olat/2.0), sn)

	ra := re * sf / math.Pow(math.Tan(math.Pi/4.0+lat*degrad/2.0), sn)
	theta := lon*degrad - olon
	if theta > math.Pi {
		theta -= 2.0 * math.Pi
	}
	if theta < -math.Pi {
		theta += 2.0 * math.Pi
	}
	theta *= sn

	nx = int(ra*math.Sin(theta) + gridXO + 0.5)
	ny = int(ro - ra*math.Cos(theta) + gridYO + 0.5)
	return nx, ny
}
