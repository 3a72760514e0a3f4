// Package chunk splits raw document text into bounded, overlapping segments
// suitable for independent embedding.
//
// The splitter works paragraph-first: paragraphs are accumulated greedily
// until the size budget would be exceeded, and only paragraphs that are
// individually oversized fall back to sentence-boundary splitting. Each chunk
// after the first is prefixed with the tail of its predecessor so that a
// citation landing near a boundary still carries the surrounding context.
package chunk

import (
	"errors"
	"strings"
	"unicode"
)

// Default segmentation parameters, expressed in characters.
const (
	// DefaultSize is the target maximum chunk length.
	DefaultSize = 1600

	// DefaultOverlap is the number of trailing characters of a chunk that
	// are repeated at the start of the next chunk.
	DefaultOverlap = 200
)

var (
	// ErrInvalidSize indicates a non-positive chunk size.
	ErrInvalidSize = errors.New("chunk size must be > 0")

	// ErrInvalidOverlap indicates an overlap that is negative or does not
	// leave room for new content in each chunk.
	ErrInvalidOverlap = errors.New("overlap must be >= 0 and < chunk size")
)

// Config controls how text is segmented.
// The zero value selects DefaultSize and DefaultOverlap.
type Config struct {
	// Size is the target maximum chunk length in characters.
	// A single sentence longer than Size is emitted as-is.
	Size int

	// Overlap is the number of trailing characters repeated at the start
	// of the following chunk. Ignored when only one chunk is produced.
	Overlap int
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.Overlap == 0 && c.Size == DefaultSize {
		c.Overlap = DefaultOverlap
	}
	return c
}

// validate checks the configuration after defaults are applied.
func (c Config) validate() error {
	if c.Size <= 0 {
		return ErrInvalidSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return ErrInvalidOverlap
	}
	return nil
}

// Split segments text into ordered chunks according to cfg.
//
// Empty or whitespace-only input yields an empty slice. Text shorter than the
// configured size yields exactly one chunk, with no overlap applied.
func Split(text string, cfg Config) ([]string, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	// Normalize line endings so blank-line detection is uniform.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	chunks := splitGreedy(text, cfg.Size)
	return applyOverlap(chunks, cfg.Overlap), nil
}

// splitGreedy accumulates paragraphs into chunks of at most size characters.
// Oversized paragraphs are handed to splitSentences.
func splitGreedy(text string, size int) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}

	for _, para := range paragraphs(text) {
		if len(para) > size {
			// The paragraph alone blows the budget: flush what we have
			// and fall back to sentence accumulation.
			flush()
			chunks = append(chunks, splitSentences(para, size)...)
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(para)+2 > size {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()

	return chunks
}

// paragraphs splits normalized text on blank lines, dropping empty entries.
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences greedily accumulates sentences into chunks of at most size
// characters. A single sentence exceeding size is emitted unsplit; the
// citation text must stay intact even when it is unavoidably long.
func splitSentences(text string, size int) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}

	for _, sent := range sentences(text) {
		if buf.Len() > 0 && buf.Len()+len(sent)+1 > size {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(sent)
	}
	flush()

	return chunks
}

// sentences splits text at sentence-terminating punctuation followed by
// whitespace. The terminator stays attached to its sentence.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		// Consume runs of terminators ("?!", "...").
		for i+1 < len(runes) && isTerminator(runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}

	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// applyOverlap prefixes every chunk except the first with the trailing
// overlap characters of its predecessor. Single-chunk results pass through
// untouched.
func applyOverlap(chunks []string, overlap int) []string {
	if len(chunks) < 2 || overlap <= 0 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		out[i] = string(tail) + " " + chunks[i]
	}
	return out
}

// EstimateTokens approximates the token count of a chunk using the common
// four-characters-per-token heuristic. Persisted alongside each chunk so
// prompt budgets can be checked without calling a tokenizer.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
