package advisory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepilot/merchant-advisor/internal/application/metrics"
	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/testutil"
	"github.com/storepilot/merchant-advisor/pkg/errors"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

type mockRouter struct {
	classifyFn func(ctx context.Context, text string) types.Intent
}

func (m *mockRouter) Classify(ctx context.Context, text string) types.Intent {
	if m.classifyFn != nil {
		return m.classifyFn(ctx, text)
	}
	return types.IntentGeneral
}

type mockResolver struct {
	resolveFn     func(ctx context.Context, freeText string) (resolver.Result, error)
	resolveByIDFn func(ctx context.Context, merchantID string) (resolver.Result, error)
}

func (m *mockResolver) Resolve(ctx context.Context, freeText string) (resolver.Result, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, freeText)
	}
	return resolver.Result{Kind: resolver.KindNoMerchant}, nil
}

func (m *mockResolver) ResolveByID(ctx context.Context, merchantID string) (resolver.Result, error) {
	if m.resolveByIDFn != nil {
		return m.resolveByIDFn(ctx, merchantID)
	}
	return resolver.Result{Kind: resolver.KindNoMerchant}, nil
}

type mockMerchantStore struct {
	historyFn       func(ctx context.Context, merchantID string) ([]merchant.Record, error)
	listPeersFn     func(ctx context.Context, industry, tradeAreaKey, excludeID string) ([]merchant.Record, error)
	listNeighborsFn func(ctx context.Context, tradeAreaKey, excludeIndustry, excludeID string) ([]merchant.Record, error)
}

func (m *mockMerchantStore) SearchByName(context.Context, string) ([]merchant.Candidate, error) {
	return nil, nil
}

func (m *mockMerchantStore) SearchByPrefix(context.Context, string) ([]merchant.Candidate, error) {
	return nil, nil
}

func (m *mockMerchantStore) GetLatest(context.Context, string) (*merchant.Record, error) {
	return nil, errors.New(errors.ErrCodeMerchantNotFound, "not found")
}

func (m *mockMerchantStore) History(ctx context.Context, merchantID string) ([]merchant.Record, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, merchantID)
	}
	return nil, nil
}

func (m *mockMerchantStore) ListPeers(ctx context.Context, industry, tradeAreaKey, excludeID string) ([]merchant.Record, error) {
	if m.listPeersFn != nil {
		return m.listPeersFn(ctx, industry, tradeAreaKey, excludeID)
	}
	return nil, nil
}

func (m *mockMerchantStore) ListNeighbors(ctx context.Context, tradeAreaKey, excludeIndustry, excludeID string) ([]merchant.Record, error) {
	if m.listNeighborsFn != nil {
		return m.listNeighborsFn(ctx, tradeAreaKey, excludeIndustry, excludeID)
	}
	return nil, nil
}

type mockTradeAreaStore struct {
	latestFn func(ctx context.Context, key, industry string) (*merchant.TradeArea, error)
}

func (m *mockTradeAreaStore) Latest(ctx context.Context, key, industry string) (*merchant.TradeArea, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, key, industry)
	}
	return nil, errors.New(errors.ErrCodeTradeAreaNotFound, "not found")
}

type mockAggregator struct {
	searchFn func(ctx context.Context, query string) (websearch.Response, error)
	calls    int
}

func (m *mockAggregator) Search(ctx context.Context, query string) (websearch.Response, error) {
	m.calls++
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return websearch.Response{}, errors.New(errors.ErrCodeWebProviderFailed, "providers down")
}

type mockGenerator struct {
	generateFn func(ctx context.Context, st *conversation.State) string
	calls      int
}

func (m *mockGenerator) Generate(ctx context.Context, st *conversation.State) string {
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(ctx, st)
	}
	return strings.Repeat("고객 매출 데이터 기반 마케팅 전략 제안. ", 4)
}

func goodResponse() string {
	return strings.Repeat("고객 매출 데이터 기반 마케팅 전략 제안. ", 4)
}

func testConfig() config.ConversationConfig {
	return config.ConversationConfig{
		MaxTurns:            10,
		SummaryThreshold:    10,
		MaxRelevanceRetries: 1,
		WebIntents:          []string{"SNS", "ISSUE", "SEASON"},
	}
}

func newTestOrchestrator(deps Dependencies) Orchestrator {
	if deps.Router == nil {
		deps.Router = &mockRouter{}
	}
	if deps.Resolver == nil {
		deps.Resolver = &mockResolver{}
	}
	if deps.Merchants == nil {
		deps.Merchants = &mockMerchantStore{}
	}
	if deps.TradeAreas == nil {
		deps.TradeAreas = &mockTradeAreaStore{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry(nil)
	}
	if deps.Web == nil {
		deps.Web = &mockAggregator{}
	}
	if deps.Generator == nil {
		deps.Generator = &mockGenerator{}
	}
	if deps.Gate == nil {
		deps.Gate = NewRelevanceGate()
	}
	if deps.Histories == nil {
		deps.Histories = &mockHistoryStore{}
	}
	if deps.Memory == nil {
		deps.Memory = NewMemoryUpdater(deps.Histories, 10, logging.NewNopLogger())
	}
	return NewOrchestrator(deps, testConfig(), logging.NewNopLogger())
}

func TestRunTurnEmptyQuery(t *testing.T) {
	o := newTestOrchestrator(Dependencies{})
	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "   "})
	assert.Equal(t, types.TurnStatusError, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestRunTurnGeneralModeWithoutMerchant(t *testing.T) {
	store := &mockHistoryStore{}
	o := newTestOrchestrator(Dependencies{Histories: store})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "마케팅 트렌드 알려줘"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.Equal(t, types.IntentGeneral, res.Intent)
	assert.Empty(t, res.MerchantID)
	assert.NotEmpty(t, res.FinalResponse)
	assert.Contains(t, res.FinalResponse, "안내사항")
	require.Len(t, store.saved, 1)
}

func TestRunTurnClarifyIsTerminal(t *testing.T) {
	cands := []merchant.Candidate{
		{MerchantID: "M1", Name: "본아***"},
		{MerchantID: "M2", Name: "본죽****"},
	}
	gen := &mockGenerator{}
	o := newTestOrchestrator(Dependencies{
		Resolver: &mockResolver{
			resolveFn: func(context.Context, string) (resolver.Result, error) {
				return resolver.Result{Kind: resolver.KindNeedsClarification, Candidates: cands}, nil
			},
		},
		Generator: gen,
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "본* 트렌드 알려줘"})

	assert.Equal(t, types.TurnStatusNeedClarify, res.Status)
	assert.Equal(t, cands, res.Candidates)
	assert.Empty(t, res.FinalResponse)
	assert.Zero(t, gen.calls)
}

func TestRunTurnResolvedLoadsContext(t *testing.T) {
	rec := &merchant.Record{
		MerchantID:   "761947ABD9",
		Name:         "본죽****",
		Industry:     "한식",
		TradeAreaKey: "A-101",
		Period:       "202406",
		Numeric:      map[string]float64{merchant.FieldLoyalShare: 0.15},
	}
	peers := []merchant.Record{{
		MerchantID: "M2",
		Numeric:    map[string]float64{merchant.FieldLoyalShare: 0.28},
	}}

	o := newTestOrchestrator(Dependencies{
		Router: &mockRouter{classifyFn: func(context.Context, string) types.Intent {
			return types.IntentRevisit
		}},
		Resolver: &mockResolver{
			resolveFn: func(context.Context, string) (resolver.Result, error) {
				return resolver.Result{Kind: resolver.KindResolved, MerchantID: rec.MerchantID, Merchant: rec}, nil
			},
		},
		Merchants: &mockMerchantStore{
			listPeersFn: func(context.Context, string, string, string) ([]merchant.Record, error) {
				return peers, nil
			},
			historyFn: func(context.Context, string) ([]merchant.Record, error) {
				return []merchant.Record{*rec}, nil
			},
		},
		Generator: &mockGenerator{generateFn: func(_ context.Context, st *conversation.State) string {
			return "본죽**** " + goodResponse() + " 재방문 단골 전략."
		}},
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "본죽 단골 분석"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.Equal(t, "761947ABD9", res.MerchantID)
	assert.Contains(t, res.FinalResponse, "2024년 06월 기준")
}

func TestRunTurnCooperationLoadsNeighbors(t *testing.T) {
	rec := &merchant.Record{
		MerchantID:   "761947ABD9",
		Name:         "본죽****",
		Industry:     "한식",
		TradeAreaKey: "A-101",
		Period:       "202406",
	}
	var gotArea, gotIndustry string

	o := newTestOrchestrator(Dependencies{
		Router: &mockRouter{classifyFn: func(context.Context, string) types.Intent {
			return types.IntentCooperation
		}},
		Resolver: &mockResolver{
			resolveFn: func(context.Context, string) (resolver.Result, error) {
				return resolver.Result{Kind: resolver.KindResolved, MerchantID: rec.MerchantID, Merchant: rec}, nil
			},
		},
		Merchants: &mockMerchantStore{
			listNeighborsFn: func(_ context.Context, tradeAreaKey, excludeIndustry, excludeID string) ([]merchant.Record, error) {
				gotArea, gotIndustry = tradeAreaKey, excludeIndustry
				return []merchant.Record{{MerchantID: "B2", Name: "카페봄", Industry: "카페"}}, nil
			},
		},
		Generator: &mockGenerator{generateFn: func(_ context.Context, st *conversation.State) string {
			return "본죽**** " + goodResponse() + " 협업 제휴 파트너 전략."
		}},
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-coop", UserQuery: "본죽 근처 가게랑 제휴"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.Equal(t, "A-101", gotArea)
	assert.Equal(t, "한식", gotIndustry)
}

func TestRunTurnPinnedMerchantCarriesForward(t *testing.T) {
	rec := &merchant.Record{MerchantID: "761947ABD9", Name: "본죽****", Period: "202406"}
	var resolvedByID string

	o := newTestOrchestrator(Dependencies{
		Resolver: &mockResolver{
			resolveByIDFn: func(_ context.Context, id string) (resolver.Result, error) {
				resolvedByID = id
				return resolver.Result{Kind: resolver.KindResolved, MerchantID: rec.MerchantID, Merchant: rec}, nil
			},
		},
		Histories: &mockHistoryStore{
			loadFn: func(_ context.Context, threadID string) (*conversation.History, error) {
				return &conversation.History{
					ThreadID: threadID,
					Meta:     conversation.ThreadMeta{MerchantID: "761947ABD9", MerchantName: "본죽****"},
				}, nil
			},
		},
		Generator: &mockGenerator{generateFn: func(context.Context, *conversation.State) string {
			return "본죽**** " + goodResponse()
		}},
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "지난달은 어땠어?"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.Equal(t, "761947ABD9", res.MerchantID)
	assert.Equal(t, "761947ABD9", resolvedByID)
}

func TestRunTurnRelevanceRetryForcesWeb(t *testing.T) {
	agg := &mockAggregator{}
	agg.searchFn = func(context.Context, string) (websearch.Response, error) {
		if agg.calls == 1 {
			return websearch.Response{}, errors.New(errors.ErrCodeWebProviderFailed, "timeout")
		}
		return websearch.Response{
			Success:      true,
			ProviderUsed: "tavily",
			Docs:         []websearch.Doc{{Title: "기사", URL: "https://e.com/a", Snippet: "내용", Source: "e.com"}},
		}, nil
	}

	gen := &mockGenerator{generateFn: func(_ context.Context, st *conversation.State) string {
		if len(st.WebSnippets) == 0 {
			return "너무 짧음"
		}
		return goodResponse() + " https://e.com/a 참고."
	}}

	o := newTestOrchestrator(Dependencies{Web: agg, Generator: gen})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "마케팅 방향 알려줘"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 2, agg.calls)
	assert.NotEmpty(t, res.Errors)
}

func TestRunTurnTotalityWithEverythingFailing(t *testing.T) {
	boom := errors.New(errors.ErrCodeInternal, "down")
	o := newTestOrchestrator(Dependencies{
		Resolver: &mockResolver{
			resolveFn: func(context.Context, string) (resolver.Result, error) {
				return resolver.Result{}, boom
			},
		},
		Histories: &mockHistoryStore{
			loadFn: func(context.Context, string) (*conversation.History, error) {
				return nil, boom
			},
			saveFn: func(context.Context, *conversation.History) error {
				return boom
			},
		},
		Web: &mockAggregator{},
		Generator: &mockGenerator{generateFn: func(context.Context, *conversation.State) string {
			return "LLM 호출 실패: down"
		}},
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "분석해줘"})

	assert.Contains(t, []types.TurnStatus{types.TurnStatusOK, types.TurnStatusNeedClarify, types.TurnStatusError}, res.Status)
	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.NotEmpty(t, res.FinalResponse)
	assert.NotEmpty(t, res.Errors)
}

func TestRunTurnLogsHistoryDegradation(t *testing.T) {
	ml := testutil.NewMockLogger()
	deps := Dependencies{
		Router:     &mockRouter{},
		Resolver:   &mockResolver{},
		Merchants:  &mockMerchantStore{},
		TradeAreas: &mockTradeAreaStore{},
		Metrics:    metrics.NewRegistry(nil),
		Web:        &mockAggregator{},
		Generator:  &mockGenerator{},
		Gate:       NewRelevanceGate(),
		Histories: &mockHistoryStore{
			loadFn: func(context.Context, string) (*conversation.History, error) {
				return nil, errors.New(errors.ErrCodeHistoryLoadFailed, "redis down")
			},
		},
	}
	deps.Memory = NewMemoryUpdater(deps.Histories, 10, ml)
	o := NewOrchestrator(deps, testConfig(), ml)

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "분석해줘"})

	assert.Equal(t, types.TurnStatusOK, res.Status)
	assert.True(t, ml.HasMessage("warn", "history load failed, starting empty"))
}

func TestRunTurnRecoversFromPanic(t *testing.T) {
	o := newTestOrchestrator(Dependencies{
		Router: &mockRouter{classifyFn: func(context.Context, string) types.Intent {
			panic("router exploded")
		}},
	})

	res := o.RunTurn(context.Background(), TurnRequest{ThreadID: "t-1", UserQuery: "질문"})
	assert.Equal(t, types.TurnStatusError, res.Status)
	assert.NotEmpty(t, res.Error)
}
