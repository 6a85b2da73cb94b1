package metrics

import (
	"math"
	"strings"
	"unicode"
)

// FleschReadingEase scores text on the Flesch scale:
//
//	206.835 - 1.015*(words/sentences) - 84.6*(syllables/words)
//
// The result is clamped to [0, 100] and rounded to two decimals. Text with
// no countable words scores 0.
func FleschReadingEase(text string) float64 {
	words := lexicon(text)
	if len(words) == 0 {
		return 0
	}
	sentences := len(SplitSentences(text))

	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}

	score := 206.835 -
		1.015*float64(len(words))/float64(sentences) -
		84.6*float64(syllables)/float64(len(words))
	if math.IsNaN(score) {
		return 0
	}
	return round(math.Max(0, math.Min(100, score)), 2)
}

// lexicon returns the lowercase words of text with punctuation removed.
// Tokens without a letter are not words.
func lexicon(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, f)
		if strings.IndexFunc(w, unicode.IsLetter) >= 0 {
			words = append(words, w)
		}
	}
	return words
}

// CountSyllables estimates the syllables in one word by counting vowel
// groups, discounting a trailing silent e. Every word has at least one.
func CountSyllables(word string) int {
	word = strings.ToLower(word)
	if word == "" {
		return 0
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	return max(count, 1)
}
