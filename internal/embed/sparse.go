package embed

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// BM25 parameters. Standard Okapi values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Vocabulary holds the corpus statistics a sparse encoder needs to turn
// term frequencies into BM25 weights. It is built during ingestion and
// persisted alongside the collection so query-time encoding sees the same
// statistics.
type Vocabulary struct {
	// DocCount is the number of documents observed.
	DocCount int `json:"doc_count"`

	// DocFreq maps term to the number of documents containing it.
	DocFreq map[string]int `json:"doc_freq"`

	// TotalTokens is the sum of document lengths, for average length.
	TotalTokens int `json:"total_tokens"`
}

// NewVocabulary creates an empty vocabulary.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{DocFreq: make(map[string]int)}
}

// avgDocLength returns the mean document length in tokens.
func (v *Vocabulary) avgDocLength() float64 {
	if v.DocCount == 0 {
		return 0
	}
	return float64(v.TotalTokens) / float64(v.DocCount)
}

// idf computes the BM25+ inverse document frequency for a term.
// Always positive, unlike classic IDF which goes negative for terms in
// more than half the corpus.
func (v *Vocabulary) idf(term string) float64 {
	df := v.DocFreq[term]
	n := v.DocCount
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// SparseEncoder produces BM25 term-weight maps for documents and queries.
// Safe for concurrent encoding after ingestion completes; Observe calls
// must not race with Encode calls.
type SparseEncoder struct {
	mu    sync.RWMutex
	vocab *Vocabulary
}

// NewSparseEncoder creates an encoder over an existing vocabulary.
// Pass NewVocabulary() for a fresh corpus.
func NewSparseEncoder(vocab *Vocabulary) *SparseEncoder {
	if vocab == nil {
		vocab = NewVocabulary()
	}
	if vocab.DocFreq == nil {
		vocab.DocFreq = make(map[string]int)
	}
	return &SparseEncoder{vocab: vocab}
}

// Vocabulary returns the underlying corpus statistics for persistence.
func (e *SparseEncoder) Vocabulary() *Vocabulary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vocab
}

// Observe updates corpus statistics with one document's text.
// Call once per document during ingestion, before encoding.
func (e *SparseEncoder) Observe(text string) {
	tokens := filterStopWords(tokenize(text))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.vocab.DocCount++
	e.vocab.TotalTokens += len(tokens)

	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			e.vocab.DocFreq[t]++
		}
	}
}

// EncodeDocument computes BM25 weights for a document's terms, with term
// frequency saturation and length normalization.
func (e *SparseEncoder) EncodeDocument(text string) map[string]float32 {
	tokens := filterStopWords(tokenize(text))
	if len(tokens) == 0 {
		return map[string]float32{}
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	docLen := float64(len(tokens))
	avgLen := e.vocab.avgDocLength()
	if avgLen == 0 {
		avgLen = docLen
	}

	weights := make(map[string]float32, len(tf))
	for term, freq := range tf {
		f := float64(freq)
		sat := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		w := e.vocab.idf(term) * sat
		if w > 0 {
			weights[term] = float32(w)
		}
	}
	return weights
}

// EncodeQuery tokenizes a query into the distinct terms used for sparse
// matching, sorted for determinism.
func (e *SparseEncoder) EncodeQuery(text string) []string {
	tokens := filterStopWords(tokenize(strings.TrimSpace(text)))
	seen := make(map[string]bool, len(tokens))
	var terms []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)
	return terms
}
