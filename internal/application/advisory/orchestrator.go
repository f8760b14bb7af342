package advisory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/merchant-advisor/internal/application/metrics"
	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/messaging/kafka"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/prometheus"
	"github.com/storepilot/merchant-advisor/internal/intelligence/forecast"
	"github.com/storepilot/merchant-advisor/internal/intelligence/intent"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// TurnRequest is one user turn. MerchantID carries the user's explicit pick
// after a disambiguation prompt.
type TurnRequest struct {
	ThreadID   string `json:"thread_id"`
	UserQuery  string `json:"user_query"`
	MerchantID string `json:"merchant_id,omitempty"`
}

// TurnResult is the turn outcome returned to the caller. Status is always
// one of ok, need_clarify or error.
type TurnResult struct {
	TurnID        string                     `json:"turn_id"`
	Status        types.TurnStatus           `json:"status"`
	Intent        types.Intent               `json:"intent"`
	MerchantID    string                     `json:"merchant_id,omitempty"`
	Candidates    []merchant.Candidate       `json:"candidates,omitempty"`
	FinalResponse string                     `json:"final_response,omitempty"`
	Actions       []string                   `json:"actions,omitempty"`
	WebSnippets   []conversation.WebSnippet  `json:"web_snippets,omitempty"`
	RetryCount    int                        `json:"retry_count,omitempty"`
	Errors        []string                   `json:"errors,omitempty"`
	Error         string                     `json:"error,omitempty"`
}

// Orchestrator runs the turn state machine.
type Orchestrator interface {
	RunTurn(ctx context.Context, req TurnRequest) TurnResult
}

// Dependencies wires the orchestrator. AppMetrics, Predictor and Publisher
// may be nil; Weather-less metric registries are handled by the registry
// itself.
type Dependencies struct {
	Router     intent.Router
	Resolver   resolver.Resolver
	Merchants  merchant.Store
	TradeAreas merchant.TradeAreaStore
	Metrics    *metrics.Registry
	Web        websearch.Aggregator
	Generator  ResponseGenerator
	Gate       RelevanceGate
	Memory     MemoryUpdater
	Histories  conversation.HistoryStore
	Predictor  forecast.Predictor
	Publisher  kafka.Publisher
	AppMetrics *prometheus.AppMetrics
}

type orchestrator struct {
	deps   Dependencies
	cfg    config.ConversationConfig
	webFor map[types.Intent]bool
	logger logging.Logger
	now    func() time.Time
}

// NewOrchestrator builds the turn orchestrator.
func NewOrchestrator(deps Dependencies, cfg config.ConversationConfig, logger logging.Logger) Orchestrator {
	return &orchestrator{
		deps:   deps,
		cfg:    cfg,
		webFor: cfg.WebIntentSet(),
		logger: logger.Named("orchestrator"),
		now:    time.Now,
	}
}

// RunTurn never panics and never returns an out-of-set status: a failure in
// any stage degrades the turn, it does not abort it.
func (o *orchestrator) RunTurn(ctx context.Context, req TurnRequest) (result TurnResult) {
	start := o.now()
	turnID := uuid.NewString()
	result = TurnResult{TurnID: turnID, Status: types.TurnStatusError, Intent: types.IntentGeneral}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panicked",
				logging.String("turn_id", turnID), logging.Any("panic", r))
			result = TurnResult{
				TurnID: turnID,
				Status: types.TurnStatusError,
				Intent: result.Intent,
				Error:  "내부 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.",
			}
		}
		o.finish(ctx, req, &result, start)
	}()

	if isBlank(req.UserQuery) {
		result.Error = "질문을 입력해 주세요."
		return result
	}

	st := o.prepare(ctx, req)
	result.Intent = st.Intent

	// RESOLVE. Clarification is terminal for this turn.
	clarified := o.resolve(ctx, req, st)
	if st.NeedClarify {
		o.persist(ctx, st)
		return TurnResult{
			TurnID:     turnID,
			Status:     types.TurnStatusNeedClarify,
			Intent:     st.Intent,
			Candidates: st.Candidates,
			Errors:     st.Errors,
		}
	}
	if clarified {
		o.observeResolver("resolved")
	}

	// LOAD_DATA and BUILD_METRICS proceed with whatever resolved.
	o.loadContext(ctx, st)
	o.buildMetrics(ctx, st)
	o.forecastBand(ctx, st)

	// WEB_AUGMENT → GENERATE → RELEVANCE_CHECK, with one bounded retry that
	// forces web augmentation.
	if o.wantsWeb(st) {
		o.augment(ctx, st)
	}
	st.RawResponse = o.deps.Generator.Generate(ctx, st)
	st.RelevancePassed = o.checkRelevance(st)

	for !st.RelevancePassed && st.RetryCount < o.cfg.MaxRelevanceRetries {
		st.RetryCount++
		o.observeRetry(st.Intent)
		if len(st.WebSnippets) == 0 {
			st.NeedWebFallback = true
			o.augment(ctx, st)
		}
		st.RawResponse = o.deps.Generator.Generate(ctx, st)
		st.RelevancePassed = o.checkRelevance(st)
	}

	st.FinalResponse = Postprocess(st.RawResponse, st)
	st.Actions = ActionSeeds(st)

	// MEMORY_UPDATE.
	o.persist(ctx, st)

	return TurnResult{
		TurnID:        turnID,
		Status:        types.TurnStatusOK,
		Intent:        st.Intent,
		MerchantID:    st.MerchantID,
		FinalResponse: st.FinalResponse,
		Actions:       st.Actions,
		WebSnippets:   st.WebSnippets,
		RetryCount:    st.RetryCount,
		Errors:        st.Errors,
	}
}

// prepare loads history and routes the intent. History unavailability
// degrades to an empty history.
func (o *orchestrator) prepare(ctx context.Context, req TurnRequest) *conversation.State {
	h, err := o.deps.Histories.Load(ctx, req.ThreadID)
	if err != nil {
		o.logger.Warn("history load failed, starting empty",
			logging.String("thread_id", req.ThreadID), logging.Err(err))
		o.observeHistory("load", "error")
		h = &conversation.History{ThreadID: req.ThreadID}
	} else {
		o.observeHistory("load", "ok")
	}

	st := conversation.NewState(req.ThreadID, req.UserQuery, h)
	st.Intent = o.deps.Router.Classify(ctx, req.UserQuery)
	return st
}

// resolve runs merchant resolution: an explicit id from a disambiguation
// answer wins, then free-text resolution, then the pinned merchant from the
// thread metadata. Returns whether a merchant ended up resolved.
func (o *orchestrator) resolve(ctx context.Context, req TurnRequest, st *conversation.State) bool {
	var res resolver.Result
	var err error

	switch {
	case req.MerchantID != "":
		res, err = o.deps.Resolver.ResolveByID(ctx, req.MerchantID)
	default:
		res, err = o.deps.Resolver.Resolve(ctx, req.UserQuery)
	}
	if err != nil {
		st.AddError("resolve", err)
		o.observeResolver("error")
		res = resolver.Result{Kind: resolver.KindNoMerchant}
	}

	// The pinned merchant carries forward when the query names no new one.
	if res.Kind == resolver.KindNoMerchant && st.History.Meta.MerchantID != "" {
		pinned, perr := o.deps.Resolver.ResolveByID(ctx, st.History.Meta.MerchantID)
		if perr == nil && pinned.Kind == resolver.KindResolved {
			res = pinned
		}
	}

	switch res.Kind {
	case resolver.KindResolved:
		st.MerchantID = res.MerchantID
		st.Resolved = &merchant.ResolvedContext{Merchant: res.Merchant}
		return true
	case resolver.KindNeedsClarification:
		st.NeedClarify = true
		st.Candidates = res.Candidates
		o.observeResolver("need_clarify")
		return false
	default:
		o.observeResolver("no_merchant")
		if st.Intent == types.IntentGeneral {
			st.NeedWebFallback = true
		}
		return false
	}
}

// loadContext fills in the trade area, peer set and period history for a
// resolved merchant. Every load failure degrades to partial context.
func (o *orchestrator) loadContext(ctx context.Context, st *conversation.State) {
	if st.Resolved == nil || st.Resolved.Merchant == nil {
		return
	}
	rec := st.Resolved.Merchant

	if rec.TradeAreaKey != "" {
		area, err := o.deps.TradeAreas.Latest(ctx, rec.TradeAreaKey, rec.Industry)
		if err != nil {
			st.AddError("load_trade_area", err)
		} else {
			st.Resolved.TradeArea = area
		}
	}

	peers, err := o.deps.Merchants.ListPeers(ctx, rec.Industry, rec.TradeAreaKey, rec.MerchantID)
	if err != nil {
		st.AddError("load_peers", err)
	} else {
		st.Resolved.Peers = peers
	}

	// Partner candidates come from other industries in the trade area, so
	// only cooperation turns pay for the extra query.
	if st.Intent == types.IntentCooperation && rec.TradeAreaKey != "" {
		neighbors, err := o.deps.Merchants.ListNeighbors(ctx, rec.TradeAreaKey, rec.Industry, rec.MerchantID)
		if err != nil {
			st.AddError("load_neighbors", err)
		} else {
			st.Resolved.Neighbors = neighbors
		}
	}
}

// buildMetrics runs the intent's builder chain, catching each failure
// independently and merging partial outputs.
func (o *orchestrator) buildMetrics(ctx context.Context, st *conversation.State) {
	var history []merchant.Record
	if st.Resolved != nil && st.Resolved.Merchant != nil {
		var err error
		history, err = o.deps.Merchants.History(ctx, st.Resolved.Merchant.MerchantID)
		if err != nil {
			st.AddError("load_history", err)
		}
	}

	in := metrics.Input{Context: st.Resolved, History: history}
	for _, b := range o.deps.Metrics.ForIntent(st.Intent) {
		out, err := b.Build(ctx, in)
		if err != nil {
			st.AddError("metrics_"+b.Name(), err)
			continue
		}
		for k, v := range out.Metrics {
			st.Metrics[k] = v
		}
		for k, v := range out.Abnormal {
			st.Abnormal[k] = v
		}
		st.Signals = append(st.Signals, out.Signals...)
	}
}

// forecastBand attaches the sales-band outlook for intents that act on it.
// Absence from the forecaster's population renders as "예측 불가".
func (o *orchestrator) forecastBand(ctx context.Context, st *conversation.State) {
	if o.deps.Predictor == nil || st.Resolved == nil || st.Resolved.Merchant == nil {
		return
	}
	if st.Intent != types.IntentIssue && st.Intent != types.IntentGeneral {
		return
	}

	pred, err := o.deps.Predictor.Predict(ctx, st.Resolved.Merchant.MerchantID,
		metrics.FeatureRow(st.Resolved.Merchant))
	if err != nil {
		st.AddError("forecast", err)
		return
	}
	if !pred.Available {
		st.Metrics["매출_전망"] = "예측 불가"
		return
	}
	st.Metrics["매출_전망_구간"] = pred.Label
	st.Metrics["매출_전망_확률"] = pred.Probability
}

func (o *orchestrator) wantsWeb(st *conversation.State) bool {
	return o.webFor[st.Intent] || st.NeedWebFallback
}

// augment runs the web-search pipeline. A pipeline failure leaves the turn
// without snippets; generation continues on internal data alone.
func (o *orchestrator) augment(ctx context.Context, st *conversation.State) {
	resp, err := o.deps.Web.Search(ctx, st.UserQuery)
	if err != nil {
		st.AddError("web_search", err)
		return
	}
	if m := o.deps.AppMetrics; m != nil {
		m.DocsReturned.WithLabelValues(st.Intent.String()).Observe(float64(len(resp.Docs)))
	}

	st.WebSnippets = st.WebSnippets[:0]
	for _, d := range resp.Docs {
		st.WebSnippets = append(st.WebSnippets, conversation.WebSnippet{
			Title:       d.Title,
			URL:         d.URL,
			Snippet:     d.Snippet,
			Source:      d.Source,
			PublishedAt: d.PublishedAt,
			Score:       d.Score,
		})
	}
	st.WebMeta = conversation.WebMeta{
		ProviderUsed: resp.ProviderUsed,
		RetryCount:   resp.Meta.RetryCount,
		FallbackUsed: resp.Meta.FallbackUsed,
		Elapsed:      resp.Meta.Elapsed,
		Query:        resp.Meta.Query,
	}
}

func (o *orchestrator) checkRelevance(st *conversation.State) bool {
	passed, reasons := o.deps.Gate.Check(st, st.RawResponse)
	if !passed {
		for _, r := range reasons {
			st.Errors = append(st.Errors, "relevance: "+r)
		}
	}
	return passed
}

func (o *orchestrator) persist(ctx context.Context, st *conversation.State) {
	if err := o.deps.Memory.Update(ctx, st); err != nil {
		st.AddError("memory_update", err)
		o.observeHistory("save", "error")
		return
	}
	o.observeHistory("save", "ok")
}

// finish records metrics and publishes the turn event. Both are best-effort.
func (o *orchestrator) finish(ctx context.Context, req TurnRequest, result *TurnResult, start time.Time) {
	elapsed := o.now().Sub(start)

	if m := o.deps.AppMetrics; m != nil {
		m.TurnsTotal.WithLabelValues(result.Intent.String(), result.Status.String()).Inc()
		m.TurnDuration.WithLabelValues(result.Intent.String()).Observe(elapsed.Seconds())
	}

	if o.deps.Publisher == nil {
		return
	}
	err := o.deps.Publisher.Publish(ctx, kafka.TurnEvent{
		EventID:    result.TurnID,
		ThreadID:   req.ThreadID,
		MerchantID: result.MerchantID,
		Intent:     result.Intent,
		Status:     result.Status,
		RetryCount: result.RetryCount,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  o.now(),
	})
	if err != nil {
		o.logger.Warn("turn event publish failed",
			logging.String("turn_id", result.TurnID), logging.Err(err))
	}
}

func (o *orchestrator) observeResolver(outcome string) {
	if m := o.deps.AppMetrics; m != nil {
		m.ResolverOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (o *orchestrator) observeRetry(i types.Intent) {
	if m := o.deps.AppMetrics; m != nil {
		m.RelevanceRetries.WithLabelValues(i.String()).Inc()
	}
}

func (o *orchestrator) observeHistory(op, status string) {
	if m := o.deps.AppMetrics; m != nil {
		m.HistoryOperations.WithLabelValues(op, status).Inc()
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
