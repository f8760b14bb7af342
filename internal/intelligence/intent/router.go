// Package intent classifies user queries into the closed conversation intent
// set. The primary path is a single-token LLM classification; a deterministic
// keyword scan backs it so classification never fails.
package intent

import (
	"context"
	"strings"

	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// Router classifies free text into an Intent. Classify is total: it returns
// a member of the intent set for any input and never errors.
type Router interface {
	Classify(ctx context.Context, text string) types.Intent
}

// aliasTable normalises near-miss labels the classifier is known to emit.
var aliasTable = map[string]types.Intent{
	"RETENTION": types.IntentRevisit,
	"REPEAT":    types.IntentRevisit,
	"PROBLEM":   types.IntentIssue,
	"DIAGNOSIS": types.IntentIssue,
	"GEN":       types.IntentGeneral,
	"DEFAULT":   types.IntentGeneral,
	"MARKETING": types.IntentSNS,
	"SOCIAL":    types.IntentSNS,
	"COOP":      types.IntentCooperation,
	"PARTNER":   types.IntentCooperation,
	"COLLAB":    types.IntentCooperation,
	"WEATHER":   types.IntentSeason,
	"SEASONAL":  types.IntentSeason,
}

// keywordRule is one fallback rule: the first rule whose keyword set
// intersects the query wins, scanned in declaration order.
type keywordRule struct {
	intent   types.Intent
	keywords []string
}

var fallbackRules = []keywordRule{
	{types.IntentSNS, []string{
		"sns", "인스타", "instagram", "틱톡", "릴스", "숏폼",
		"홍보", "바이럴", "해시태그", "피드", "스토리", "유튜브",
	}},
	{types.IntentRevisit, []string{
		"재방문", "재내점", "단골", "리텐션", "충성",
		"쿠폰", "멤버십", "적립", "포인트", "스탬프",
	}},
	{types.IntentIssue, []string{
		"문제", "이슈", "원인", "진단", "하락", "감소", "급감", "떨어",
		"왜 이렇", "안 나오", "줄었",
	}},
	{types.IntentCooperation, []string{
		"협업", "제휴", "콜라보", "파트너", "상생", "공동",
	}},
	{types.IntentSeason, []string{
		"날씨", "계절", "시즌", "장마", "폭염", "한파",
		"여름", "겨울", "봄철", "가을", "성수기", "비수기",
	}},
}

const classifySystemPrompt = `당신은 소상공인 마케팅 상담 질문의 의도를 분류합니다.
다음 중 정확히 하나의 라벨만 출력하세요. 설명을 덧붙이지 마세요.

- SNS: SNS 홍보, 바이럴, 콘텐츠 채널 전략
- REVISIT: 재방문/단골 확보, 쿠폰·멤버십 등 리텐션
- ISSUE: 매출 하락 원인 진단, 문제 분석
- COOPERATION: 주변 가게와의 제휴·협업
- SEASON: 날씨·계절 연계 마케팅
- GENERAL: 그 외 일반 마케팅 상담`

type router struct {
	client llm.Client // nil means keyword rules only
	logger logging.Logger
}

// NewRouter constructs a Router. client may be nil, in which case only the
// keyword fallback runs.
func NewRouter(client llm.Client, logger logging.Logger) Router {
	return &router{client: client, logger: logger.Named("intent")}
}

func (r *router) Classify(ctx context.Context, text string) types.Intent {
	if strings.TrimSpace(text) == "" {
		return types.IntentGeneral
	}

	if r.client != nil {
		if i, ok := r.classifyLLM(ctx, text); ok {
			return i
		}
	}
	return classifyByKeywords(text)
}

func (r *router) classifyLLM(ctx context.Context, text string) (types.Intent, bool) {
	out, err := r.client.Complete(ctx, llm.Request{
		System:      classifySystemPrompt,
		User:        text,
		Temperature: llm.Temp(0),
		MaxTokens:   8,
	})
	if err != nil {
		r.logger.Warn("intent classification failed, falling back to keyword rules", logging.Err(err))
		return "", false
	}

	label := normalizeLabel(out)
	if i, ok := types.ParseIntent(label); ok {
		return i, true
	}
	if i, ok := aliasTable[label]; ok {
		return i, true
	}
	r.logger.Warn("classifier returned out-of-set label", logging.String("label", label))
	return "", false
}

// normalizeLabel reduces a model response to a single upper-case token.
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \n\t:,."); i > 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.Trim(s, `"'`))
}

// classifyByKeywords scans the fallback rules in fixed order; no match means
// GENERAL.
func classifyByKeywords(text string) types.Intent {
	lower := strings.ToLower(text)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return types.IntentGeneral
}
