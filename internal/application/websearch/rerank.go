package websearch

import (
	"math"
	"strings"
	"unicode"
)

// Rerank assigns each document a similarity score between the query and its
// title+snippet. "lexical" is TF-IDF cosine and always available; any other
// mode silently degrades to lexical since no embedding backend is wired for
// per-call reranking.
func Rerank(query string, docs []Doc, mode string) []Doc {
	_ = mode // embedding mode degrades to lexical
	if len(docs) == 0 {
		return docs
	}

	corpus := make([][]string, len(docs)+1)
	corpus[0] = tokenize(query)
	for i, d := range docs {
		corpus[i+1] = tokenize(d.Title + " " + d.Snippet)
	}

	idf := inverseDocFrequency(corpus)
	qv := tfidfVector(corpus[0], idf)
	for i := range docs {
		docs[i].Score = cosine(qv, tfidfVector(corpus[i+1], idf))
	}
	return docs
}

// tokenize lowercases and splits on anything that is not a letter or digit.
// Hangul syllables additionally contribute character bigrams so partial
// Korean word matches still overlap.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f)
		runes := []rune(f)
		if containsHangul(runes) && len(runes) > 2 {
			for i := 0; i+1 < len(runes); i++ {
				out = append(out, string(runes[i:i+2]))
			}
		}
	}
	return out
}

func containsHangul(runes []rune) bool {
	for _, r := range runes {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// inverseDocFrequency computes smoothed IDF over the corpus.
func inverseDocFrequency(corpus [][]string) map[string]float64 {
	df := map[string]int{}
	for _, doc := range corpus {
		seen := map[string]bool{}
		for _, t := range doc {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	n := float64(len(corpus))
	idf := make(map[string]float64, len(df))
	for t, c := range df {
		idf[t] = math.Log((n+1)/(float64(c)+1)) + 1
	}
	return idf
}

func tfidfVector(tokens []string, idf map[string]float64) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}
	tf := map[string]float64{}
	for _, t := range tokens {
		tf[t]++
	}
	vec := make(map[string]float64, len(tf))
	for t, c := range tf {
		vec[t] = (c / float64(len(tokens))) * idf[t]
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for t, va := range a {
		na += va * va
		if vb, ok := b[t]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
