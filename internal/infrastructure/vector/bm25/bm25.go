package bm25

import (
	"math"
	"strings"
)

// Okapi parameters.
const (
	K1      = 1.5
	B       = 0.75
	Epsilon = 0.25
)

// Index is an immutable Okapi BM25 index over a fixed corpus.
// Scores are position-aligned with the corpus passed to New.
type Index struct {
	termFreqs []map[string]int
	docLen    []int
	avgDocLen float64
	idf       map[string]float64
}

func New(corpus []string) *Index {
	idx := &Index{
		termFreqs: make([]map[string]int, len(corpus)),
		docLen:    make([]int, len(corpus)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, doc := range corpus {
		tokens := Tokenize(doc)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for tok := range freqs {
			docFreq[tok]++
		}
		idx.termFreqs[i] = freqs
		idx.docLen[i] = len(tokens)
		total += len(tokens)
	}
	if len(corpus) > 0 {
		idx.avgDocLen = float64(total) / float64(len(corpus))
	}

	// Terms present in more than half the corpus get a negative raw idf; they are
	// floored at Epsilon times the mean idf.
	n := float64(len(corpus))
	sum := 0.0
	var negative []string
	for term, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	if len(docFreq) > 0 {
		floor := Epsilon * sum / float64(len(docFreq))
		for _, term := range negative {
			idx.idf[term] = floor
		}
	}
	return idx
}

func (idx *Index) Len() int {
	return len(idx.docLen)
}

// Scores returns one BM25 score per corpus document, in corpus order.
func (idx *Index) Scores(query string) []float64 {
	scores := make([]float64, len(idx.docLen))
	if idx.avgDocLen == 0 {
		return scores
	}
	for _, term := range Tokenize(query) {
		idf, ok := idx.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range idx.termFreqs {
			f := float64(freqs[term])
			if f == 0 {
				continue
			}
			norm := K1 * (1 - B + B*float64(idx.docLen[i])/idx.avgDocLen)
			scores[i] += idf * f * (K1 + 1) / (f + norm)
		}
	}
	return scores
}

// Tokenize lower-cases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
