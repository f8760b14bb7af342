package advisory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/storepilot/merchant-advisor/internal/domain/conversation"
)

const maxCitations = 3

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	deepHeading  = regexp.MustCompile(`#{4,}`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

const disclaimer = `
---
💡 **안내사항**
- 본 분석은 카드 거래 데이터를 기반으로 한 통계적 추정입니다.
- 실제 실행 시 가맹점 상황에 맞게 조정이 필요합니다.
- 마케팅 효과는 실행 방법에 따라 달라질 수 있습니다.`

// Postprocess turns the raw model output into the final response: text
// cleanup, the data-basis badge, the deduplicated citation block and the
// closing disclaimer.
func Postprocess(raw string, st *conversation.State) string {
	text := cleanResponse(raw)
	text = addDataBadge(text, st)
	text += sourcesBlock(st.WebSnippets, st.WebMeta)
	return text + "\n" + disclaimer
}

// cleanResponse collapses runs of blank lines and demotes overly deep
// markdown headings.
func cleanResponse(raw string) string {
	text := multiNewline.ReplaceAllString(raw, "\n\n")
	text = deepHeading.ReplaceAllString(text, "###")
	return strings.TrimSpace(text)
}

// addDataBadge appends the period the analysis is based on, when known.
func addDataBadge(text string, st *conversation.State) string {
	if st.Resolved == nil || st.Resolved.Merchant == nil {
		return text
	}
	if badge := formatPeriod(st.Resolved.Merchant.Period); badge != "" {
		return text + "\n\n📅 **기준 데이터**: " + badge
	}
	return text
}

// formatPeriod renders YYYYMM as "YYYY년 MM월"; malformed periods yield "".
func formatPeriod(period string) string {
	if len(period) < 6 {
		return ""
	}
	year, month := period[:4], period[4:6]
	for _, r := range year + month {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year + "년 " + month + "월 기준"
}

// sourcesBlock renders the citation section, deduplicated by (title, domain)
// and capped at maxCitations. Empty when no snippets survived the pipeline.
func sourcesBlock(snips []conversation.WebSnippet, meta conversation.WebMeta) string {
	unique := dedupSources(snips, maxCitations)
	if len(unique) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n---\n🔗 참고 출처\n")
	if meta.Query != "" || meta.ProviderUsed != "" {
		provider := meta.ProviderUsed
		if provider == "" {
			provider = "auto"
		}
		fmt.Fprintf(&b, "*검색 정보: provider=%s, query=%q*\n", provider, meta.Query)
	}
	for _, s := range unique {
		title := s.Title
		if title == "" {
			title = "(제목 없음)"
		}
		fmt.Fprintf(&b, "- %s · %s", title, s.Source)
		if !s.PublishedAt.IsZero() {
			fmt.Fprintf(&b, " · %s", s.PublishedAt.Format("2006-01-02"))
		}
		if s.URL != "" {
			fmt.Fprintf(&b, " · %s", s.URL)
		}
		b.WriteString("\n")
		if snippet := strings.TrimSpace(s.Snippet); snippet != "" {
			fmt.Fprintf(&b, "  └ %s\n", truncateRunes(multiSpace.ReplaceAllString(snippet, " "), 220))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func dedupSources(snips []conversation.WebSnippet, limit int) []conversation.WebSnippet {
	type key struct{ title, domain string }
	seen := make(map[key]bool)
	var out []conversation.WebSnippet
	for _, s := range snips {
		k := key{strings.ToLower(strings.TrimSpace(s.Title)), strings.ToLower(s.Source)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ActionSeeds derives an ordered action plan from the turn's signals. A turn
// with no specific signal still yields one generic diagnostic action.
func ActionSeeds(st *conversation.State) []string {
	var actions []string
	has := func(signal string) bool {
		for _, s := range st.Signals {
			if s == signal {
				return true
			}
		}
		return false
	}

	if has("RETENTION_ALERT") {
		actions = append(actions, "재방문 고객 확보 프로그램: 스탬프/쿠폰 프로그램 도입")
	}
	if has("CHANNEL_MIX_ALERT") {
		actions = append(actions, "배달 의존도 감소 전략: 매장 내 식사 프로모션 강화")
	}
	if has("NEW_CUSTOMER_FOCUS") {
		actions = append(actions, "신규 고객 유입 캠페인: 첫 방문 할인 및 지역 타겟 홍보")
	}
	if len(actions) == 0 {
		actions = append(actions, "종합 마케팅 진단: 현황 분석 및 맞춤 전략 수립")
	}
	if len(actions) > 5 {
		actions = actions[:5]
	}
	return actions
}
