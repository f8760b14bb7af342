// Package advisory sequences one conversation turn: intent routing, merchant
// resolution, metric derivation, web augmentation, response generation, the
// relevance gate and the memory update.
package advisory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

// ResponseGenerator renders the advisory text for one turn. Generation never
// returns an error; an LLM failure yields marker text so the turn still
// produces a response.
type ResponseGenerator interface {
	Generate(ctx context.Context, st *conversation.State) string
}

type generator struct {
	client llm.Client
	logger logging.Logger
}

// NewResponseGenerator builds the LLM-backed generator.
func NewResponseGenerator(client llm.Client, logger logging.Logger) ResponseGenerator {
	return &generator{client: client, logger: logger.Named("generator")}
}

// Per-intent system prompts. Every prompt pins the same four-section output
// scaffold so the relevance gate and postprocessing can rely on it.
var systemPrompts = map[types.Intent]string{
	types.IntentGeneral: `당신은 데이터 기반 마케팅 전략가입니다. 아래 정보를 바탕으로 근거 있는 분석과 실행 전략을 제시하세요.
- 분석 → 근거 → 실행 전략 순으로 답변
- 가능한 경우 제공된 데이터 지표에서 수치 근거 활용
- 일반론 금지, 해당 가게 상황에 맞는 구체 전략 제시
- 가게 정보와 데이터 지표가 없으면 웹 참고 정보를 바탕으로 답변`,
	types.IntentSNS: `당신은 SNS 마케팅 전문가입니다. 가맹점 데이터를 기반으로 SNS 채널 추천과 콘텐츠 전략을 작성하세요.
- 추천 채널별 이유를 데이터로 설명
- 타겟 고객층에 맞는 콘텐츠 아이디어 제시
- 내부 데이터와 외부 스니펫 중 어떤 근거를 썼는지 문장 끝에 (내부) / (외부)로 표기
- 과장 없이 실행 가능한 수준으로만 작성`,
	types.IntentIssue: `당신은 가게 운영 진단 전문가입니다. 이상 징후 데이터를 바탕으로 문제의 원인과 해결 방안을 제시하세요.
- 이상 징후 항목별로 원인 가설과 대응책을 짝지어 설명
- 리스크 점수가 있으면 심각도 판단에 활용
- 즉시 실행 가능한 조치와 중기 개선안을 구분`,
	types.IntentRevisit: `당신은 고객 유지(리텐션) 전략 전문가입니다. 재방문 고객 데이터를 바탕으로 단골 확보 전략을 제시하세요.
- 단골 비중과 동일 상권 업종 평균의 차이를 수치로 설명
- 재방문율을 높일 수 있는 구체적 프로그램 제안
- 신규 고객과 재방문 고객의 균형 관점 포함`,
	types.IntentCooperation: `당신은 상권 협업 마케팅 전문가입니다. 협업 잠재력 데이터를 바탕으로 주변 가게와의 제휴 전략을 제시하세요.
- 협업 잠재력 점수와 후보 가게 목록을 근거로 활용
- 업종이 다른 가게와의 교차 프로모션 아이디어 제시
- 점수가 없으면 상권 특성 기반의 일반 제휴 방향 제안`,
	types.IntentSeason: `당신은 시즌 마케팅 전문가입니다. 계절과 날씨 데이터를 바탕으로 시기 적합한 프로모션 전략을 제시하세요.
- 현재 계절과 날씨 전망을 전략 근거로 활용
- 시간대별 매출 패턴이 있으면 피크 시간대를 공략에 반영
- 단기(1~2주) 실행 가능한 프로모션 위주로 제안`,
}

const outputScaffold = `### 출력 형식
1. 현재 상황 요약
2. 핵심 데이터 분석 (근거 2~3개)
3. 전략 제안 (실행 가능하고 구체적으로)
4. 기대 효과`

func (g *generator) Generate(ctx context.Context, st *conversation.State) string {
	system, ok := systemPrompts[st.Intent]
	if !ok {
		system = systemPrompts[types.IntentGeneral]
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		System: system + "\n\n" + outputScaffold,
		User:   buildUserPrompt(st),
	})
	if err != nil {
		g.logger.Warn("generation failed",
			logging.String("intent", st.Intent.String()), logging.Err(err))
		return llm.FailureText(err)
	}
	return resp
}

// buildUserPrompt renders the turn context the model answers from. Sections
// with no data render "N/A" rather than being dropped, so the model knows the
// data is genuinely absent.
func buildUserPrompt(st *conversation.State) string {
	var b strings.Builder

	b.WriteString("### 질문\n")
	b.WriteString(st.UserQuery)

	b.WriteString("\n\n### 가게 정보\n")
	if st.Resolved != nil && st.Resolved.Merchant != nil {
		m := st.Resolved.Merchant
		fmt.Fprintf(&b, "- 가게명: %s\n- 업종: %s\n- 상권: %s\n- 기준월: %s",
			m.Name, m.Industry, m.TradeAreaKey, m.Period)
	} else {
		b.WriteString("N/A")
	}

	b.WriteString("\n\n### 데이터 지표\n")
	b.WriteString(renderMetrics(st.Metrics))

	if len(st.Abnormal) > 0 {
		b.WriteString("\n\n### 이상 징후\n")
		for _, k := range sortedKeys(st.Abnormal) {
			fmt.Fprintf(&b, "- %s: %s\n", k, st.Abnormal[k])
		}
	}

	b.WriteString("\n\n### 웹 참고 정보\n")
	b.WriteString(renderSnippets(st.WebSnippets))

	return b.String()
}

func renderMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return "N/A"
	}
	var b strings.Builder
	for _, k := range sortedAnyKeys(metrics) {
		fmt.Fprintf(&b, "- %s: %v\n", k, metrics[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSnippets(snips []conversation.WebSnippet) string {
	if len(snips) == 0 {
		return "N/A"
	}
	const limit = 3
	var b strings.Builder
	for i, s := range snips {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "- %s · %s: %s\n", s.Title, s.Source, s.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAnyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
