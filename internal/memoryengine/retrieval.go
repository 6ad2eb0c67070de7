package memoryengine

import (
	"math"
	"sort"
	"strings"

	"github.com/agentrt/runtime/internal/models"
)

// DefaultTopK is the default number of chunks returned by Retrieve.
const DefaultTopK = 8

// DefaultMinScore discards chunks scoring below this threshold.
const DefaultMinScore = 0.1

type scoredChunk struct {
	chunk *models.MemoryChunk
	score float64
	order int
}

// tokenize case-folds and splits on whitespace, dropping tokens of length <= 2.
func tokenize(s string) []string {
	folded := strings.ToLower(s)
	fields := strings.Fields(folded)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func termCounts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

// Retrieve runs the TF-IDF-like keyword-weighted retrieval algorithm over
// all chunks, applying the verbatim/title score boosts and the min-score
// cutoff, then returns the top K chunks. Deterministic and stable under
// ties by insertion order.
func Retrieve(query string, chunks []*models.MemoryChunk, topK int, minScore float64) []*models.MemoryChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(chunks) == 0 {
		return nil
	}
	queryCounts := termCounts(queryTokens)

	docFreq := make(map[string]int)
	chunkTokenSets := make([]map[string]int, len(chunks))
	for i, c := range chunks {
		toks := termCounts(tokenize(c.Text))
		chunkTokenSets[i] = toks
		for w := range toks {
			docFreq[w]++
		}
	}
	corpusSize := len(chunks)
	foldedQuery := strings.ToLower(query)

	var scored []scoredChunk
	for i, c := range chunks {
		toks := chunkTokenSets[i]
		chunkWordCount := 0
		for _, n := range toks {
			chunkWordCount += n
		}
		if chunkWordCount == 0 {
			continue
		}

		var score float64
		for w, qCount := range queryCounts {
			cCount, ok := toks[w]
			if !ok {
				continue
			}
			tf := float64(cCount) / float64(chunkWordCount)
			idf := math.Log(float64(corpusSize) / float64(1+docFreq[w]))
			score += tf * idf * float64(qCount)
		}

		if score == 0 {
			continue
		}

		if strings.Contains(strings.ToLower(c.Text), foldedQuery) {
			score *= 2
		}
		if title, ok := c.Metadata["title"]; ok && strings.Contains(strings.ToLower(title), foldedQuery) {
			score *= 1.5
		}

		if score < minScore {
			continue
		}
		scored = append(scored, scoredChunk{chunk: c, score: score, order: i})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].order < scored[j].order
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	out := make([]*models.MemoryChunk, topK)
	for i := 0; i < topK; i++ {
		out[i] = scored[i].chunk
	}
	return out
}

// RetrieveFallback is the simpler set-overlap + sqrt-length-normalization
// path, used by assemble_context when the corpus has too few chunks to make
// IDF meaningful or when the TF-IDF path finds nothing. Deterministic and
// stable under ties by insertion order.
func RetrieveFallback(query string, chunks []*models.MemoryChunk, topK int) []*models.MemoryChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	queryTokens := uniqueSet(tokenize(query))
	if len(queryTokens) == 0 || len(chunks) == 0 {
		return nil
	}

	var scored []scoredChunk
	for i, c := range chunks {
		chunkTokens := uniqueSet(tokenize(c.Text))
		if len(chunkTokens) == 0 {
			continue
		}
		overlap := 0
		for w := range queryTokens {
			if chunkTokens[w] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / math.Sqrt(float64(len(chunkTokens)))
		scored = append(scored, scoredChunk{chunk: c, score: score, order: i})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].order < scored[j].order
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	out := make([]*models.MemoryChunk, topK)
	for i := 0; i < topK; i++ {
		out[i] = scored[i].chunk
	}
	return out
}

func uniqueSet(tokens []string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}
