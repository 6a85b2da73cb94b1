package cleaner

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func newTestCleaner() *Cleaner {
	return New(DefaultOptions(), nil)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "smart quotes and em dash",
			input: "He says “catastrophe” before—anything bad happens.",
			want:  `He says "catastrophe" before--anything bad happens.`,
		},
		{
			name:  "single quotes and guillemets",
			input: "‘One thought’ and «another» and „third“",
			want:  `'One thought' and "another" and "third"`,
		},
		{
			name:  "dash family",
			input: "pages 10–12, e‐mail, 5 − 3, a―b",
			want:  "pages 10-12, e-mail, 5 - 3, a--b",
		},
		{
			name:  "extra whitespace",
			input: "He  worked   so   hard.\n\n\n\nAnd   then   failed.",
			want:  "He worked so hard.\n\nAnd then failed.",
		},
		{
			name:  "tabs and carriage returns",
			input: "a\tb\r\nc\rd",
			want:  "a b\nc\nd",
		},
		{
			name:  "ellipsis bullets and invisible characters",
			input: "Just… think\u00a0now\u200b • ok\ufeff",
			want:  "Just... think now * ok",
		},
		{
			name:  "canonical composition",
			input: "café",
			want:  "café",
		},
		{
			name:  "windows-1252 mojibake",
			input: "Itâ€™s a “mess”",
			want:  `It's a "mess"`,
		},
		{
			name:  "latin-1 mojibake",
			input: "cafÃ© culture",
			want:  "café culture",
		},
		{
			name:  "valid accents untouched",
			input: "naïve café façade",
			want:  "naïve café façade",
		},
		{
			name:  "accented capitals next to smart quotes",
			input: "The sign just said “CAFÉ” in faded letters.",
			want:  `The sign just said "CAFÉ" in faded letters.`,
		},
		{
			name:  "accented capital before em dash",
			input: "“JOSÉ—wait!”",
			want:  `"JOSÉ--wait!"`,
		},
		{
			name:  "accented vowel before closing quote",
			input: "“Ya está”—dijo",
			want:  `"Ya está"--dijo`,
		},
		{
			name:  "accented capital inside guillemets",
			input: "«CAFÉ»",
			want:  `"CAFÉ"`,
		},
		{
			name:  "decomposed accent before trademark sign",
			input: "CAFE\u0301™",
			want:  "CAFÉ™",
		},
		{
			name:  "windows-1252 mojibake em dash",
			input: "waitâ€”now",
			want:  "wait--now",
		},
		{
			name:  "control characters stripped",
			input: "a\x00b\x07c\x7fd",
			want:  "abcd",
		},
		{
			name:  "trim",
			input: "  ‘One thought, one conception’—one purpose.  \n\n\n",
			want:  "'One thought, one conception'--one purpose.",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: " \t\n ",
			want:  "",
		},
	}

	c := newTestCleaner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Clean(tt.input))
		})
	}
}

func TestRepairEncoding_DoubleEncoded(t *testing.T) {
	// "é" encoded to UTF-8 and misread as Latin-1 twice.
	assert.Equal(t, "café", repairEncoding("caf\u00c3\u0083\u00c2\u00a9"))
}

func TestRepairEncoding_LeavesUnpairedHighBytes(t *testing.T) {
	assert.Equal(t, "“quoted” and Ã alone", repairEncoding("“quoted” and Ã alone"))
}

func TestRepairEncoding_OnlyMojibakeLeads(t *testing.T) {
	tests := []string{
		"CAFÉ”",    // É + ” would decode to U+0254
		"JOSÉ—",    // É + — would decode to U+0257
		"está”—",   // á + ” + — would decode to U+1517
		"á©©",      // á + © + © would decode to U+1A69
		"Ñ¡",       // Ñ + ¡ would decode to U+0461
		"Â\u0080x", // decodes to a C1 control, not a repair target
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, norm.NFC.String(in), repairEncoding(in))
		})
	}
}

func TestRepairEncoding_ComposesBeforeRepair(t *testing.T) {
	// "A" + combining tilde composes to "Ã", which with "©" is the
	// mojibake for "é".
	assert.Equal(t, "café", repairEncoding("cafA\u0303©"))
	assert.Equal(t, "CAFÉ™", repairEncoding("CAFE\u0301™"))
}

func TestClean_RedactsEmail(t *testing.T) {
	c := newTestCleaner()
	input := "Contact me at test@example.com for my thoughts about the passage and its recurring themes of isolation."

	got := c.Clean(input)

	assert.Contains(t, got, EmailPlaceholder)
	assert.NotContains(t, got, "test@example.com")
	assert.True(t, strings.HasPrefix(got, "Contact me at [EMAIL REMOVED] for"))
}

func TestClean_URLsKeptByDefault(t *testing.T) {
	c := newTestCleaner()
	input := "See https://gutenberg.org/ebooks/84 or www.example.com today"

	assert.Equal(t, input, c.Clean(input))
}

func TestClean_URLRemoval(t *testing.T) {
	opts := DefaultOptions()
	opts.RemoveURLs = true
	c := New(opts, nil)

	got := c.Clean("See https://gutenberg.org/ebooks/84 or www.example.com today")

	assert.Equal(t, "See [URL REMOVED] or [URL REMOVED] today", got)
}

func TestClean_Lowercase(t *testing.T) {
	opts := DefaultOptions()
	opts.Lowercase = true

	assert.Equal(t, "victor's creature", New(opts, nil).Clean("Victor’s Creature"))
}

func TestClean_AllStepsDisabled(t *testing.T) {
	c := New(Options{}, nil)
	input := "  “raw”  text —  stays\t"

	assert.Equal(t, input, c.Clean(input))
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"He says “catastrophe” before—anything bad happens.",
		"He  worked   so   hard.\n\n\n\nAnd   then   failed.",
		"Itâ€™s cafÃ© time… • really\u00a0now",
		"Mail test@example.com or call 555-123-4567 — thanks!!",
		"a \n\n\n b \r\n\r\n\r\n c",
		"\ufeffBOM first, then\u200bzero width",
		"plain ascii text with nothing to fix",
		"The sign just said “CAFÉ” in faded letters.",
		"“JOSÉ—wait!”",
		"“Ya está”—dijo",
		"«CAFÉ»",
		"CAFE\u0301™",
		"á©©\n",
		"cafA\u0303© and caf\u00c3\u0083\u00c2\u00a9",
		"",
	}

	c := newTestCleaner()
	for _, in := range inputs {
		once := c.Clean(in)
		twice := c.Clean(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestClean_IdempotentOnRandomRunes(t *testing.T) {
	// Runes that interact: mojibake leads and trails, accented letters,
	// combining marks, typographic punctuation, invisibles and whitespace.
	alphabet := []rune("aZe .,'\"-\t\n\r" +
		"ÂÃâÉáéÑ©€™ƒœ\u0080\u0093\u0085" +
		"“”‘’«»—–…•\u00a0\u200b\ufeff\u0301\u0303\x00")

	rng := rand.New(rand.NewPCG(84, 1342))
	c := newTestCleaner()
	for range 50000 {
		rs := make([]rune, 1+rng.IntN(12))
		for i := range rs {
			rs[i] = alphabet[rng.IntN(len(alphabet))]
		}
		in := string(rs)

		once := c.Clean(in)
		if twice := c.Clean(once); once != twice {
			t.Fatalf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestClean_LowercaseIdempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.Lowercase = true
	c := New(opts, nil)

	for _, in := range []string{"Â€™s", "ÃƒÂ©", "CAFÉ” Itâ€™s"} {
		once := c.Clean(in)
		assert.Equal(t, once, c.Clean(once), "input %q", in)
	}
}

func TestClean_NeverDropsWords(t *testing.T) {
	c := newTestCleaner()
	input := "The   creature’s eyes—dull and yellow—opened…\n\n\n\nVictor fled."

	got := c.Clean(input)

	assert.Equal(t, len(strings.Fields(strings.NewReplacer("—", " ", "…", " ").Replace(input))),
		len(strings.Fields(strings.NewReplacer("--", " ", "...", " ").Replace(got))))
}

func TestSummarize(t *testing.T) {
	original := "He  said “yes”—\tthen left."
	cleaned := newTestCleaner().Clean(original)

	s := Summarize(original, cleaned)

	assert.Equal(t, len([]rune(original)), s.OriginalLength)
	assert.Equal(t, len([]rune(cleaned)), s.CleanedLength)
	assert.Equal(t, s.OriginalLength-s.CleanedLength, s.LengthChange)
	assert.True(t, s.HadSmartQuotes)
	assert.True(t, s.HadEmDashes)
	assert.True(t, s.HadExtraWhitespace)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("", "")
	assert.Zero(t, s.LengthChangePct)
	assert.False(t, s.HadSmartQuotes)
}
