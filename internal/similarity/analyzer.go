// Package similarity builds TF-IDF vectors over a batch of texts and finds
// near-duplicates by cosine similarity.
package similarity

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

const (
	analyzerName  = "moments_tfidf"
	minLengthName = "min_length_2"
)

// buildAnalyzer assembles the token chain used for vectorising:
// unicode word segmentation, lowercasing, English stop word removal and
// dropping single-rune tokens.
func buildAnalyzer() (analysis.Analyzer, error) {
	im := bleve.NewIndexMapping()

	if err := im.AddCustomTokenFilter(minLengthName, map[string]any{
		"type": length.Name,
		"min":  2.0,
	}); err != nil {
		return nil, fmt.Errorf("register length filter: %w", err)
	}

	if err := im.AddCustomAnalyzer(analyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []any{lowercase.Name, en.StopName, minLengthName},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	a := im.AnalyzerNamed(analyzerName)
	if a == nil {
		return nil, fmt.Errorf("analyzer %q not available", analyzerName)
	}
	return a, nil
}

// terms returns the unigrams and, when maxN is 2, the bigrams of text.
// Bigrams join adjacent surviving tokens, so they span removed stop words.
func terms(a analysis.Analyzer, text string, maxN int) []string {
	stream := a.Analyze([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		tokens = append(tokens, string(tok.Term))
	}

	out := make([]string, 0, len(tokens)*maxN)
	out = append(out, tokens...)
	if maxN >= 2 {
		for i := 0; i+1 < len(tokens); i++ {
			out = append(out, tokens[i]+" "+tokens[i+1])
		}
	}
	return out
}
