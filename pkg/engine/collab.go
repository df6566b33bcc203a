package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Summarizer compresses a batch of texts into one summary. Implementations
// typically call out to a language model and may fail; the engine treats a
// failure as "skip compression this cycle", never as fatal.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// Chunk is one scored slice of a large document.
type Chunk struct {
	Content string
	Score   float64
}

// ChunkRanker orders document chunks by relevance to a query.
type ChunkRanker interface {
	RankChunks(ctx context.Context, content, query string) ([]Chunk, error)
}

// TokenEstimator counts tokens in a text. A failing estimator degrades
// pressure accounting to the Low zone instead of blocking the turn.
type TokenEstimator func(text string) (int, error)

// charsPerToken is the fallback heuristic ratio for English-ish text.
const charsPerToken = 4

// HeuristicTokens estimates tokens as len/4. Never fails.
func HeuristicTokens(text string) (int, error) {
	return (len(text) + charsPerToken - 1) / charsPerToken, nil
}

// ExtractiveSummarizer is the built-in fallback: it keeps the first
// sentence of each text. Good enough for local operation without a model.
type ExtractiveSummarizer struct{}

func (ExtractiveSummarizer) Summarize(_ context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", errors.New("summarize: no input")
	}
	var parts []string
	for _, t := range texts {
		parts = append(parts, firstSentence(t))
	}
	return strings.Join(parts, " "), nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return text[:i+1]
		}
	}
	return text
}

// chunkSize is the document slice size in characters for the lexical ranker.
const chunkSize = 1600

// LexicalRanker is the built-in chunk ranker: fixed-size chunks scored by
// query term overlap.
type LexicalRanker struct{}

func (LexicalRanker) RankChunks(_ context.Context, content, query string) ([]Chunk, error) {
	terms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(query)) {
		terms[t] = struct{}{}
	}

	var chunks []Chunk
	for start := 0; start < len(content); start += chunkSize {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}
		piece := content[start:end]

		score := 0.0
		for _, w := range strings.Fields(strings.ToLower(piece)) {
			if _, ok := terms[strings.Trim(w, ".,;:!?")]; ok {
				score++
			}
		}
		chunks = append(chunks, Chunk{Content: piece, Score: score})
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, nil
}
