package similarity

import (
	"cmp"
	"log/slog"
	"math"
	"slices"

	"github.com/blevesearch/bleve/v2/analysis"

	"github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

// Config controls vocabulary construction.
type Config struct {
	// MinDF is the minimum number of documents a term must appear in.
	MinDF int `yaml:"min_df"`
	// MaxFeatures caps the vocabulary at the most frequent terms.
	MaxFeatures int `yaml:"max_features"`
	// MaxNGram is 1 for unigrams only, 2 to add bigrams.
	MaxNGram int `yaml:"max_ngram"`
}

// DefaultConfig returns unigram+bigram vectors with min_df 2 and up to
// 5000 features.
func DefaultConfig() Config {
	return Config{MinDF: 2, MaxFeatures: 5000, MaxNGram: 2}
}

// Vector is a sparse L2-normalised TF-IDF vector keyed by term index.
type Vector map[int]float64

// Vectorizer fits indexes. Safe for concurrent use.
type Vectorizer struct {
	cfg      Config
	analyzer analysis.Analyzer
	logger   *slog.Logger
}

// NewVectorizer creates a vectorizer with the built-in analyzer chain.
func NewVectorizer(cfg Config, log *slog.Logger) (*Vectorizer, error) {
	if cfg.MinDF < 1 {
		cfg.MinDF = 1
	}
	if cfg.MaxNGram < 1 {
		cfg.MaxNGram = 1
	}
	a, err := buildAnalyzer()
	if err != nil {
		return nil, err
	}
	return &Vectorizer{cfg: cfg, analyzer: a, logger: logger.OrDiscard(log)}, nil
}

// Index is a fitted vocabulary plus the vectors of the documents it was
// fitted on. It is immutable and safe for concurrent reads.
type Index struct {
	analyzer analysis.Analyzer
	maxN     int
	vocab    map[string]int
	idf      []float64
	ids      []string
	docs     []Vector
}

// Fit builds the vocabulary and document vectors for texts. ids[i] names
// texts[i]. Fit fails when no term survives pruning.
func (v *Vectorizer) Fit(texts, ids []string) (*Index, error) {
	if len(texts) != len(ids) {
		return nil, errors.Internalf("similarity: %d texts but %d ids", len(texts), len(ids))
	}

	docTerms := make([][]string, len(texts))
	df := map[string]int{}
	tf := map[string]int{}
	for i, text := range texts {
		docTerms[i] = terms(v.analyzer, text, v.cfg.MaxNGram)
		seen := map[string]bool{}
		for _, t := range docTerms[i] {
			tf[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	kept := make([]string, 0, len(df))
	for t, n := range df {
		if n >= v.cfg.MinDF {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, errors.Unavailablef("similarity: empty vocabulary after pruning (%d documents, min_df %d)", len(texts), v.cfg.MinDF)
	}

	if v.cfg.MaxFeatures > 0 && len(kept) > v.cfg.MaxFeatures {
		slices.SortFunc(kept, func(a, b string) int {
			if c := cmp.Compare(tf[b], tf[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		kept = kept[:v.cfg.MaxFeatures]
	}
	slices.Sort(kept)

	ix := &Index{
		analyzer: v.analyzer,
		maxN:     v.cfg.MaxNGram,
		vocab:    make(map[string]int, len(kept)),
		idf:      make([]float64, len(kept)),
		ids:      slices.Clone(ids),
		docs:     make([]Vector, len(texts)),
	}
	n := float64(len(texts))
	for i, t := range kept {
		ix.vocab[t] = i
		ix.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	for i, dt := range docTerms {
		ix.docs[i] = ix.vectorize(dt)
	}

	v.logger.Debug("similarity index fitted", "documents", len(texts), "terms", len(kept))
	return ix, nil
}

// Transform vectorises text with the fitted vocabulary. Unknown terms are
// ignored.
func (ix *Index) Transform(text string) Vector {
	return ix.vectorize(terms(ix.analyzer, text, ix.maxN))
}

func (ix *Index) vectorize(docTerms []string) Vector {
	vec := Vector{}
	for _, t := range docTerms {
		if i, ok := ix.vocab[t]; ok {
			vec[i]++
		}
	}
	var norm float64
	for i, count := range vec {
		w := count * ix.idf[i]
		vec[i] = w
		norm += w * w
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Match is a near-duplicate candidate.
type Match struct {
	ID    string
	Score float64
}

// FirstAbove returns the first indexed document, in fit order, whose cosine
// similarity with text reaches threshold. Documents whose id equals
// excludeID are skipped.
func (ix *Index) FirstAbove(text, excludeID string, threshold float64) (Match, bool) {
	q := ix.Transform(text)
	if len(q) == 0 {
		return Match{}, false
	}
	for i, doc := range ix.docs {
		if ix.ids[i] == excludeID {
			continue
		}
		if score := Cosine(q, doc); score >= threshold {
			return Match{ID: ix.ids[i], Score: score}, true
		}
	}
	return Match{}, false
}

// Similarity returns the cosine similarity between two texts under the
// fitted vocabulary.
func (ix *Index) Similarity(a, b string) float64 {
	return Cosine(ix.Transform(a), ix.Transform(b))
}

// Docs returns the number of indexed documents.
func (ix *Index) Docs() int { return len(ix.docs) }

// Terms returns the vocabulary size.
func (ix *Index) Terms() int { return len(ix.vocab) }

// Cosine returns the dot product of two L2-normalised vectors.
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, w := range a {
		dot += w * b[i]
	}
	return dot
}
