package prometheus

// AppMetrics holds the service's metric vectors.
type AppMetrics struct {
	TurnsTotal         CounterVec
	TurnDuration       HistogramVec
	ResolverOutcomes   CounterVec
	ProviderDuration   HistogramVec
	DocsReturned       HistogramVec
	LLMRequestsTotal   CounterVec
	LLMRequestDuration HistogramVec
	RelevanceRetries   CounterVec
	HistoryOperations  CounterVec
}

// Default buckets.
var (
	DefaultTurnDurationBuckets     = []float64{.25, .5, 1, 2.5, 5, 10, 30, 60}
	DefaultProviderDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDocsReturnedBuckets     = []float64{0, 1, 2, 3, 5, 8, 13, 21}
)

// NewAppMetrics registers every metric vector on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	return &AppMetrics{
		TurnsTotal: collector.RegisterCounter(
			"turns_total", "Completed conversation turns", "intent", "status"),
		TurnDuration: collector.RegisterHistogram(
			"turn_duration_seconds", "End-to-end turn duration",
			DefaultTurnDurationBuckets, "intent"),
		ResolverOutcomes: collector.RegisterCounter(
			"resolver_outcomes_total", "Merchant resolver outcomes", "outcome"),
		ProviderDuration: collector.RegisterHistogram(
			"websearch_provider_duration_seconds", "Per-provider search duration",
			DefaultProviderDurationBuckets, "provider"),
		DocsReturned: collector.RegisterHistogram(
			"websearch_docs_returned", "Documents returned per search pipeline run",
			DefaultDocsReturnedBuckets, "intent"),
		LLMRequestsTotal: collector.RegisterCounter(
			"llm_requests_total", "LLM completion calls", "operation", "status"),
		LLMRequestDuration: collector.RegisterHistogram(
			"llm_request_duration_seconds", "LLM completion call duration",
			DefaultProviderDurationBuckets, "operation"),
		RelevanceRetries: collector.RegisterCounter(
			"relevance_retries_total", "Relevance-gate regeneration retries", "intent"),
		HistoryOperations: collector.RegisterCounter(
			"history_operations_total", "Conversation history store operations", "operation", "status"),
	}
}
