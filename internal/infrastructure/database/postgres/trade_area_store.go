package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

type tradeAreaStore struct {
	q      querier
	logger logging.Logger
}

// NewTradeAreaStore builds the pgx-backed trade-area repository.
func NewTradeAreaStore(conn *Connection, logger logging.Logger) merchant.TradeAreaStore {
	return &tradeAreaStore{q: conn.Pool(), logger: logger.Named("trade_area_store")}
}

func newTradeAreaStore(q querier, logger logging.Logger) *tradeAreaStore {
	return &tradeAreaStore{q: q, logger: logger}
}

const latestAreaSQL = `
SELECT period, area_key, industry, metrics
FROM trade_areas
WHERE area_key = $1 AND industry = $2
ORDER BY period DESC
LIMIT 1`

func (s *tradeAreaStore) Latest(ctx context.Context, key, industry string) (*merchant.TradeArea, error) {
	var area merchant.TradeArea
	var metrics []byte
	err := s.q.QueryRow(ctx, latestAreaSQL, key, industry).
		Scan(&area.Period, &area.Key, &area.Industry, &metrics)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeTradeAreaNotFound, "trade area not found").
			WithDetailf("key: %s, industry: %s", key, industry)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "trade area lookup failed")
	}
	area.Numeric, err = decodeMetrics(metrics)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "trade area metrics decode failed")
	}
	return &area, nil
}
