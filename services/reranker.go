package services

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/queryquack/queryquack/models"
)

// Reranker re-scores retrieved candidates against the query text. The
// query text is a required input: a reranker never guesses context from
// result metadata.
type Reranker interface {
	Rerank(queryText string, candidates []models.RetrievedChunk) []models.RetrievedChunk
}

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// LexicalReranker scores (query, candidate) pairs by the Ochiai
// coefficient over their token sets. It is a cheap stand-in for a
// cross-encoder that needs no model backend.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker { return &LexicalReranker{} }

// Rerank sorts candidates by pairwise lexical relevance, descending.
// Ties keep the incoming (vector-similarity) order.
func (r *LexicalReranker) Rerank(queryText string, candidates []models.RetrievedChunk) []models.RetrievedChunk {
	qset := tokenSet(queryText)

	type scored struct {
		chunk models.RetrievedChunk
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{chunk: c, score: ochiai(qset, c.Text)}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]models.RetrievedChunk, len(ranked))
	for i, s := range ranked {
		out[i] = s.chunk
		out[i].Score = s.score
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ochiai computes |A∩B| / sqrt(|A||B|) over token sets.
func ochiai(qset map[string]struct{}, text string) float64 {
	tset := tokenSet(text)
	if len(qset) == 0 || len(tset) == 0 {
		return 0
	}
	inter := 0
	for t := range tset {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(tset)))
}
