package postgres

import (
	"context"
	"encoding/json"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

const searchLimit = 50

// querier is the subset of pgxpool.Pool the repositories use.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type merchantStore struct {
	q      querier
	logger logging.Logger
}

// NewMerchantStore builds the pgx-backed merchant repository.
func NewMerchantStore(conn *Connection, logger logging.Logger) merchant.Store {
	return &merchantStore{q: conn.Pool(), logger: logger.Named("merchant_store")}
}

func newMerchantStore(q querier, logger logging.Logger) *merchantStore {
	return &merchantStore{q: q, logger: logger}
}

// Stored names carry display masks, so matching always runs over the
// star-stripped form on both sides.
const searchByNameSQL = `
SELECT DISTINCT ON (merchant_id) merchant_id, merchant_name, industry, address
FROM merchants
WHERE replace(merchant_name, '*', '') LIKE '%' || $1 || '%'
ORDER BY merchant_id, period DESC
LIMIT $2`

func (s *merchantStore) SearchByName(ctx context.Context, fragment string) ([]merchant.Candidate, error) {
	fragment = merchant.StripMask(merchant.NormalizeName(fragment))
	if fragment == "" {
		return nil, nil
	}
	return s.queryCandidates(ctx, searchByNameSQL, fragment, searchLimit)
}

const searchByPrefixSQL = `
SELECT DISTINCT ON (merchant_id) merchant_id, merchant_name, industry, address
FROM merchants
WHERE replace(merchant_name, '*', '') LIKE $1 || '%'
ORDER BY merchant_id, period DESC
LIMIT $2`

func (s *merchantStore) SearchByPrefix(ctx context.Context, prefix string) ([]merchant.Candidate, error) {
	prefix = merchant.StripMask(merchant.NormalizeName(prefix))
	if prefix == "" {
		return nil, nil
	}
	return s.queryCandidates(ctx, searchByPrefixSQL, prefix, searchLimit)
}

func (s *merchantStore) queryCandidates(ctx context.Context, sql string, args ...any) ([]merchant.Candidate, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "candidate search failed")
	}
	defer rows.Close()

	var out []merchant.Candidate
	for rows.Next() {
		var c merchant.Candidate
		if err := rows.Scan(&c.MerchantID, &c.Name, &c.Industry, &c.Address); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "candidate scan failed")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "candidate iteration failed")
	}
	return out, nil
}

const getLatestSQL = `
SELECT merchant_id, merchant_name, industry, trade_area_key, address, period, metrics
FROM merchants
WHERE merchant_id = $1
ORDER BY period DESC
LIMIT 1`

func (s *merchantStore) GetLatest(ctx context.Context, merchantID string) (*merchant.Record, error) {
	rec, err := scanRecord(s.q.QueryRow(ctx, getLatestSQL, merchantID))
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.ErrCodeMerchantNotFound, "merchant not found").
			WithDetail("merchant_id: " + merchantID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "latest record lookup failed")
	}
	return rec, nil
}

const historySQL = `
SELECT merchant_id, merchant_name, industry, trade_area_key, address, period, metrics
FROM merchants
WHERE merchant_id = $1
ORDER BY period DESC`

func (s *merchantStore) History(ctx context.Context, merchantID string) ([]merchant.Record, error) {
	rows, err := s.q.Query(ctx, historySQL, merchantID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "history query failed")
	}
	defer rows.Close()
	return collectRecords(rows)
}

const listPeersSQL = `
SELECT DISTINCT ON (merchant_id) merchant_id, merchant_name, industry, trade_area_key, address, period, metrics
FROM merchants
WHERE industry = $1 AND trade_area_key = $2 AND merchant_id <> $3
ORDER BY merchant_id, period DESC`

func (s *merchantStore) ListPeers(ctx context.Context, industry, tradeAreaKey, excludeID string) ([]merchant.Record, error) {
	rows, err := s.q.Query(ctx, listPeersSQL, industry, tradeAreaKey, excludeID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "peer query failed")
	}
	defer rows.Close()
	return collectRecords(rows)
}

const listNeighborsSQL = `
SELECT DISTINCT ON (merchant_id) merchant_id, merchant_name, industry, trade_area_key, address, period, metrics
FROM merchants
WHERE trade_area_key = $1 AND industry <> $2 AND merchant_id <> $3
ORDER BY merchant_id, period DESC`

func (s *merchantStore) ListNeighbors(ctx context.Context, tradeAreaKey, excludeIndustry, excludeID string) ([]merchant.Record, error) {
	rows, err := s.q.Query(ctx, listNeighborsSQL, tradeAreaKey, excludeIndustry, excludeID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "neighbor query failed")
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]merchant.Record, error) {
	var out []merchant.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "record scan failed")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "record iteration failed")
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*merchant.Record, error) {
	var rec merchant.Record
	var metrics []byte
	err := row.Scan(&rec.MerchantID, &rec.Name, &rec.Industry, &rec.TradeAreaKey,
		&rec.Address, &rec.Period, &metrics)
	if err != nil {
		return nil, err
	}
	rec.Numeric, err = decodeMetrics(metrics)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// decodeMetrics parses the jsonb metrics column. Source nulls stay absent
// from the resulting map, and ratio-typed fields are normalised onto [0,1].
func decodeMetrics(raw []byte) (map[string]float64, error) {
	if len(raw) == 0 {
		return map[string]float64{}, nil
	}
	var parsed map[string]*float64
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(parsed))
	for k, v := range parsed {
		if v == nil || math.IsNaN(*v) {
			continue
		}
		if merchant.IsRatioField(k) {
			out[k] = merchant.NormalizeRatio(*v)
		} else {
			out[k] = *v
		}
	}
	return out, nil
}
