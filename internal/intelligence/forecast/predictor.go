// Package forecast wraps the external sales-band predictor. The model is
// trained elsewhere; this client only submits a feature row and interprets
// the response. A merchant absent from the training population is a normal
// outcome, not an error.
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Sales-band labels, best to worst.
var Labels = []string{
	"10%이하",
	"10-25%",
	"25-50%",
	"50-75%",
	"75-90%",
	"90%초과(하위 10% 이하)",
}

// Prediction is one predictor response. Available is false when the merchant
// is not part of the training population; Label and Probability are then
// zero-valued and the caller renders "예측 불가".
type Prediction struct {
	Available   bool    `json:"available"`
	Label       string  `json:"label,omitempty"`
	Probability float64 `json:"probability,omitempty"`
}

// Predictor is the forecast contract.
type Predictor interface {
	Predict(ctx context.Context, merchantID string, features map[string]float64) (Prediction, error)
}

type httpPredictor struct {
	cfg    config.ForecastConfig
	hc     *http.Client
	logger logging.Logger
}

// NewPredictor constructs an HTTP-backed Predictor.
func NewPredictor(cfg config.ForecastConfig, logger logging.Logger) Predictor {
	return &httpPredictor{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("forecast"),
	}
}

type predictRequest struct {
	MerchantID string             `json:"merchant_id"`
	Features   map[string]float64 `json:"features"`
}

type predictResponse struct {
	InPopulation bool    `json:"in_population"`
	Label        string  `json:"label"`
	Probability  float64 `json:"probability"`
}

func (p *httpPredictor) Predict(ctx context.Context, merchantID string, features map[string]float64) (Prediction, error) {
	if !p.cfg.Enabled || p.cfg.Endpoint == "" {
		return Prediction{}, nil
	}

	body, err := json.Marshal(predictRequest{MerchantID: merchantID, Features: features})
	if err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeSerialization, "marshal predict request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeForecastFailed, "build predict request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeForecastFailed, "predict request failed")
	}
	defer resp.Body.Close()

	// The predictor answers 404 for merchants outside its training
	// population; that is "prediction unavailable", not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return Prediction{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, errors.Newf(errors.ErrCodeForecastFailed,
			"predictor returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeForecastFailed, "read predict response")
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Prediction{}, errors.Wrap(err, errors.ErrCodeSerialization, "decode predict response")
	}
	if !parsed.InPopulation {
		return Prediction{}, nil
	}
	return Prediction{Available: true, Label: parsed.Label, Probability: parsed.Probability}, nil
}
