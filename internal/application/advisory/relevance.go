package advisory

import (
	"strings"
	"unicode/utf8"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/pkg/types"
)

const minResponseRunes = 50

// RelevanceGate screens a generated response with cheap heuristics before it
// reaches the user. It returns whether the response passed and the reasons it
// did not.
type RelevanceGate interface {
	Check(st *conversation.State, response string) (bool, []string)
}

type relevanceGate struct{}

// NewRelevanceGate builds the heuristic gate.
func NewRelevanceGate() RelevanceGate {
	return relevanceGate{}
}

// dataKeywords is the minimum evidence that the response engages with the
// merchant's data at all.
var dataKeywords = []string{
	"재방문", "배달", "고객", "비중", "%", "매출", "순위", "신규", "단골", "방문",
	"리뷰", "트렌드", "사례", "데이터",
}

type intentRule struct {
	keywords []string
	message  string
}

var intentRules = map[types.Intent]intentRule{
	types.IntentSNS: {
		keywords: []string{"sns", "인스타", "릴스", "틱톡", "채널", "콘텐츠", "해시태그", "포스팅", "네이버", "플레이스", "쇼츠"},
		message:  "SNS 전략 관련 키워드 부족",
	},
	types.IntentRevisit: {
		keywords: []string{"재방문", "단골", "리텐션", "쿠폰", "멤버십", "스탬프"},
		message:  "재방문 전략 관련 키워드 부족",
	},
	types.IntentIssue: {
		keywords: []string{"문제", "원인", "분석", "하락", "이슈", "리스크"},
		message:  "문제 진단 관련 키워드 부족",
	},
	types.IntentCooperation: {
		keywords: []string{"협업", "제휴", "콜라보", "파트너", "상권"},
		message:  "협업 전략 관련 키워드 부족",
	},
	types.IntentSeason: {
		keywords: []string{"계절", "시즌", "날씨", "프로모션", "성수기"},
		message:  "시즌 전략 관련 키워드 부족",
	},
	types.IntentGeneral: {
		keywords: []string{"전략", "마케팅", "개선", "방향"},
		message:  "전략적 제안 키워드 부족",
	},
}

func (relevanceGate) Check(st *conversation.State, response string) (bool, []string) {
	var reasons []string
	trimmed := strings.TrimSpace(response)

	if utf8.RuneCountInString(trimmed) < minResponseRunes {
		reasons = append(reasons, "응답이 너무 짧습니다 (최소 50자 필요)")
	}

	// The masked display name is what the model was given, so that is what
	// the response must mention.
	if st.Resolved != nil && st.Resolved.Merchant != nil {
		name := st.Resolved.Merchant.Name
		if utf8.RuneCountInString(name) > 1 &&
			!strings.Contains(response, name) &&
			!strings.Contains(response, merchant.StripMask(name)) {
			reasons = append(reasons, "가게명 '"+name+"'이(가) 응답에 포함되지 않았습니다")
		}
	}

	if !containsAny(response, dataKeywords) {
		reasons = append(reasons, "데이터 기반 분석 키워드가 부족합니다")
	}

	if rule, ok := intentRules[st.Intent]; ok {
		if !containsAny(strings.ToLower(response), rule.keywords) {
			reasons = append(reasons, rule.message)
		}
	}

	// Soft citation check: web-augmented answers should reference at least
	// one source. Advisory only; it never fails the gate alone.
	if len(st.WebSnippets) > 0 && !hasCitation(response) {
		if len(reasons) > 0 {
			reasons = append(reasons, "웹 출처 인용 없음")
		}
	}

	return len(reasons) == 0, reasons
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func hasCitation(s string) bool {
	return strings.Contains(s, "참고 출처") ||
		strings.Contains(s, "http://") ||
		strings.Contains(s, "https://")
}
