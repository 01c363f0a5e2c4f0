package retriever

import (
	"sort"

	"github.com/sfarag/slackfaq/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing constant. Higher
// values flatten the difference between adjacent ranks.
const DefaultRRFConstant = 60

// Fuse combines dense and sparse result lists using reciprocal rank
// fusion. Each document scores sum(1/(c+rank)) over the lists it
// appears in, with ranks 1-based. Raw sub-search scores are ignored;
// only positions matter, which makes the fusion immune to the
// incomparable score scales of cosine similarity and BM25.
//
// Pure function: inputs are not mutated and identical inputs always
// produce identical output. An empty sub-list degenerates to a
// rank-only reordering of the other list.
//
// Ties break toward the document with the better dense rank, then by
// lexicographic document ID.
func Fuse(dense, sparse []store.RankedHit, k, rrfConstant int) []store.RankedHit {
	if rrfConstant <= 0 {
		rrfConstant = DefaultRRFConstant
	}

	type fused struct {
		score     float64
		denseRank int // 0 = absent
	}

	scores := make(map[string]*fused, len(dense)+len(sparse))

	for i, hit := range dense {
		rank := i + 1
		scores[hit.DocID] = &fused{
			score:     1.0 / float64(rrfConstant+rank),
			denseRank: rank,
		}
	}

	for i, hit := range sparse {
		rank := i + 1
		contribution := 1.0 / float64(rrfConstant+rank)
		if f, ok := scores[hit.DocID]; ok {
			f.score += contribution
		} else {
			scores[hit.DocID] = &fused{score: contribution}
		}
	}

	results := make([]store.RankedHit, 0, len(scores))
	for id, f := range scores {
		results = append(results, store.RankedHit{
			DocID:  id,
			Score:  f.score,
			Source: store.SourceFused,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		ri := scores[results[i].DocID].denseRank
		rj := scores[results[j].DocID].denseRank
		if ri != rj {
			// A present dense rank beats absence; lower rank wins.
			if ri == 0 {
				return false
			}
			if rj == 0 {
				return true
			}
			return ri < rj
		}
		return results[i].DocID < results[j].DocID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
