package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, freeText string) (resolver.Result, error)
}

func (m *mockResolver) Resolve(ctx context.Context, freeText string) (resolver.Result, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, freeText)
	}
	return resolver.Result{Kind: resolver.KindNoMerchant}, nil
}

func (m *mockResolver) ResolveByID(context.Context, string) (resolver.Result, error) {
	return resolver.Result{Kind: resolver.KindNoMerchant}, nil
}

type mockStore struct {
	searchByNameFn func(ctx context.Context, fragment string) ([]merchant.Candidate, error)
	getLatestFn    func(ctx context.Context, merchantID string) (*merchant.Record, error)
}

func (m *mockStore) SearchByName(ctx context.Context, fragment string) ([]merchant.Candidate, error) {
	if m.searchByNameFn != nil {
		return m.searchByNameFn(ctx, fragment)
	}
	return nil, nil
}

func (m *mockStore) SearchByPrefix(context.Context, string) ([]merchant.Candidate, error) {
	return nil, nil
}

func (m *mockStore) GetLatest(ctx context.Context, merchantID string) (*merchant.Record, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, merchantID)
	}
	return nil, errors.New(errors.ErrCodeMerchantNotFound, "merchant not found")
}

func (m *mockStore) History(context.Context, string) ([]merchant.Record, error) { return nil, nil }

func (m *mockStore) ListPeers(context.Context, string, string, string) ([]merchant.Record, error) {
	return nil, nil
}

func (m *mockStore) ListNeighbors(context.Context, string, string, string) ([]merchant.Record, error) {
	return nil, nil
}

func newMerchantHandler(res resolver.Resolver, store merchant.Store) *MerchantHandler {
	return NewMerchantHandler(res, store, logging.NewNopLogger())
}

func TestMerchantHandlerResolve(t *testing.T) {
	h := newMerchantHandler(&mockResolver{
		resolveFn: func(_ context.Context, freeText string) (resolver.Result, error) {
			assert.Equal(t, "본죽", freeText)
			return resolver.Result{Kind: resolver.KindResolved, MerchantID: "761947ABD9"}, nil
		},
	}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merchants/resolve?q=본죽", nil)
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "resolved", resp.Kind)
	assert.Equal(t, "761947ABD9", resp.MerchantID)
}

func TestMerchantHandlerResolveRequiresQuery(t *testing.T) {
	h := newMerchantHandler(&mockResolver{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merchants/resolve", nil)
	w := httptest.NewRecorder()

	h.Resolve(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMerchantHandlerSearch(t *testing.T) {
	h := newMerchantHandler(&mockResolver{}, &mockStore{
		searchByNameFn: func(context.Context, string) ([]merchant.Candidate, error) {
			return []merchant.Candidate{
				{MerchantID: "M1", Name: "본죽****"},
				{MerchantID: "M2", Name: "본아***"},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merchants/search?q=본", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Candidates, 2)
}

func TestMerchantHandlerSearchEmptyResultIsAnArray(t *testing.T) {
	h := newMerchantHandler(&mockResolver{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merchants/search?q=없는가게", nil)
	w := httptest.NewRecorder()

	h.Search(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"candidates":[]`)
}

func TestMerchantHandlerGetNotFound(t *testing.T) {
	h := newMerchantHandler(&mockResolver{}, &mockStore{})

	r := chi.NewRouter()
	r.Get("/merchants/{merchantID}", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/merchants/M999999999", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "MERCH_001")
}

func TestMerchantHandlerGet(t *testing.T) {
	h := newMerchantHandler(&mockResolver{}, &mockStore{
		getLatestFn: func(_ context.Context, id string) (*merchant.Record, error) {
			return &merchant.Record{MerchantID: id, Name: "본죽****", Period: "202406"}, nil
		},
	})

	r := chi.NewRouter()
	r.Get("/merchants/{merchantID}", h.Get)

	req := httptest.NewRequest(http.MethodGet, "/merchants/761947ABD9", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "761947ABD9")
}
