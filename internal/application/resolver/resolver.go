// Package resolver implements merchant resolution from fuzzy, partially
// masked user input. Resolution is a pure query against the merchant store:
// no side effects, deterministic candidate ordering.
package resolver

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/storepilot/merchant-advisor/internal/domain/merchant"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	"github.com/storepilot/merchant-advisor/pkg/errors"
)

// Kind is the resolution outcome category.
type Kind int

const (
	// KindNoMerchant means no merchant matched; the turn proceeds in
	// general mode.
	KindNoMerchant Kind = iota
	// KindResolved means exactly one merchant matched.
	KindResolved
	// KindNeedsClarification means several merchants matched and the user
	// must pick one.
	KindNeedsClarification
)

// String returns the wire name of the outcome.
func (k Kind) String() string {
	switch k {
	case KindResolved:
		return "resolved"
	case KindNeedsClarification:
		return "need_clarify"
	default:
		return "no_merchant"
	}
}

// Result is the outcome of one resolution attempt.
type Result struct {
	Kind       Kind
	MerchantID string
	Merchant   *merchant.Record
	Candidates []merchant.Candidate
}

// Resolver resolves free text to a merchant. A store failure is the only
// error condition; everything else degrades to NoMerchant.
type Resolver interface {
	Resolve(ctx context.Context, freeText string) (Result, error)

	// ResolveByID resolves an explicit merchant id, used when the user
	// answers a disambiguation prompt.
	ResolveByID(ctx context.Context, merchantID string) (Result, error)
}

// maxCandidates caps the disambiguation list.
const maxCandidates = 20

// merchantIDPattern matches the fixed-length alphanumeric merchant code. A
// pure-letter token of length 10 is a word, not a code, so at least one
// digit is required.
var merchantIDPattern = regexp.MustCompile(`\b[0-9A-Z]{10}\b`)
var hasDigit = regexp.MustCompile(`[0-9]`)

const extractSystemPrompt = `사용자 문장에서 가게 이름 또는 가맹점 코드를 추출하세요.
- 가맹점 코드(영문 대문자+숫자 10자리)가 있으면 코드만 출력
- 가게 이름이 있으면 이름만 출력 (별표 등 마스킹 문자는 제거)
- 둘 다 없으면 NONE 만 출력`

type service struct {
	store  merchant.Store
	client llm.Client // nil disables LLM extraction
	logger logging.Logger
}

// New constructs a Resolver over the given store. client may be nil.
func New(store merchant.Store, client llm.Client, logger logging.Logger) Resolver {
	return &service{store: store, client: client, logger: logger.Named("resolver")}
}

func (s *service) Resolve(ctx context.Context, freeText string) (Result, error) {
	if strings.TrimSpace(freeText) == "" {
		return Result{Kind: KindNoMerchant}, nil
	}

	// An explicit merchant code always wins over name matching.
	if id := extractMerchantID(freeText); id != "" {
		return s.ResolveByID(ctx, id)
	}

	fragment := s.extractNameFragment(ctx, freeText)
	if fragment == "" {
		return Result{Kind: KindNoMerchant}, nil
	}
	return s.resolveByName(ctx, fragment)
}

func (s *service) ResolveByID(ctx context.Context, merchantID string) (Result, error) {
	rec, err := s.store.GetLatest(ctx, merchantID)
	if err != nil {
		// An unknown code degrades to general mode rather than blocking
		// the turn.
		if errors.IsNotFound(err) {
			return Result{Kind: KindNoMerchant}, nil
		}
		return Result{}, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "merchant lookup failed")
	}
	return Result{Kind: KindResolved, MerchantID: rec.MerchantID, Merchant: rec}, nil
}

func (s *service) resolveByName(ctx context.Context, fragment string) (Result, error) {
	norm := merchant.StripMask(merchant.NormalizeName(fragment))
	if norm == "" {
		return Result{Kind: KindNoMerchant}, nil
	}

	cands, err := s.store.SearchByName(ctx, norm)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "merchant name search failed")
	}

	// Relaxed tier: first two characters, for heavily masked names.
	if len(cands) == 0 {
		if prefix := firstRunes(norm, 2); len([]rune(prefix)) >= 2 {
			cands, err = s.store.SearchByPrefix(ctx, prefix)
			if err != nil {
				return Result{}, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "merchant prefix search failed")
			}
		}
	}

	cands = RankCandidates(norm, cands)
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}

	switch len(cands) {
	case 0:
		return Result{Kind: KindNoMerchant}, nil
	case 1:
		rec, err := s.store.GetLatest(ctx, cands[0].MerchantID)
		if err != nil {
			if errors.IsNotFound(err) {
				return Result{Kind: KindNoMerchant}, nil
			}
			return Result{}, errors.Wrap(err, errors.ErrCodeMerchantQueryFailed, "merchant lookup failed")
		}
		return Result{Kind: KindResolved, MerchantID: rec.MerchantID, Merchant: rec}, nil
	default:
		return Result{Kind: KindNeedsClarification, Candidates: cands}, nil
	}
}

// extractNameFragment pulls the most plausible merchant-name token from free
// text, via the LLM when configured and a heuristic otherwise. Extraction
// failures never abort resolution.
func (s *service) extractNameFragment(ctx context.Context, text string) string {
	if s.client != nil {
		out, err := s.client.Complete(ctx, llm.Request{
			System:      extractSystemPrompt,
			User:        text,
			Temperature: llm.Temp(0),
			MaxTokens:   32,
		})
		if err == nil {
			out = strings.TrimSpace(out)
			if out != "" && !strings.EqualFold(out, "NONE") {
				return merchant.StripMask(out)
			}
			return ""
		}
		s.logger.Warn("name extraction failed, using heuristic", logging.Err(err))
	}
	return heuristicFragment(text)
}

// fragmentStopwords are common query words that are never merchant names.
var fragmentStopwords = map[string]bool{
	"매출": true, "홍보": true, "마케팅": true, "방법": true, "전략": true,
	"알려줘": true, "알려주세요": true, "어떻게": true, "문제": true, "원인": true,
	"요즘": true, "우리": true, "가게": true, "고객": true, "손님": true,
	"트렌드": true, "추천": true,
}

// heuristicFragment returns the first Hangul token that is not an obvious
// query word; merchant names tend to lead the sentence.
func heuristicFragment(text string) string {
	for _, tok := range strings.Fields(text) {
		tok = merchant.StripMask(strings.Trim(tok, `"'(),.?!`))
		if tok == "" || !containsHangul(tok) || fragmentStopwords[tok] {
			continue
		}
		return tok
	}
	return ""
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func extractMerchantID(text string) string {
	for _, m := range merchantIDPattern.FindAllString(strings.ToUpper(text), -1) {
		if hasDigit.MatchString(m) {
			return m
		}
	}
	return ""
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RankCandidates orders candidates deterministically: exact matches first,
// then prefix matches, then fewer mask characters, then shorter names, then
// lexicographic. Duplicates by merchant id are removed, first occurrence
// wins.
func RankCandidates(fragment string, cands []merchant.Candidate) []merchant.Candidate {
	seen := make(map[string]bool, len(cands))
	out := make([]merchant.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.MerchantID == "" || seen[c.MerchantID] {
			continue
		}
		seen[c.MerchantID] = true
		name := merchant.StripMask(merchant.NormalizeName(c.Name))
		c.Exact = c.Exact || name == fragment
		c.Prefix = c.Prefix || strings.HasPrefix(name, fragment) || strings.HasPrefix(fragment, name)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Exact != b.Exact {
			return a.Exact
		}
		if a.Prefix != b.Prefix {
			return a.Prefix
		}
		if sa, sb := a.StarCount(), b.StarCount(); sa != sb {
			return sa < sb
		}
		if la, lb := len([]rune(a.Name)), len([]rune(b.Name)); la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
	return out
}
