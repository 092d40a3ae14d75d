package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxChars = 700
	DefaultOverlap  = 100
)

// sentence-ending punctuation (including full-width variants) followed by
// whitespace
var sentenceSplitter = regexp.MustCompile(`(?s)(.*?[.!?。．！？])(?:\s+|$)`)

// Chunk splits text into bounded, overlapping segments respecting sentence
// boundaries. It is pure: same inputs, same output, no I/O.
//
// Sentences are accumulated greedily until adding the next one would exceed
// maxChars; the buffer is then emitted and a new buffer is seeded with the
// last overlap characters of the emitted chunk so context survives the
// boundary. A single sentence longer than maxChars is force-split at fixed
// rune boundaries, each slice starting overlap runes before the end of the
// previous one.
func Chunk(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxChars {
		// an overlap as large as the budget would make forced splits walk
		// backwards
		overlap = maxChars / 2
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len([]rune(trimmed)) <= maxChars {
		return []string{trimmed}
	}

	sentences := splitSentences(trimmed)

	var chunks []string
	var buf []rune
	for _, sentence := range sentences {
		runes := []rune(sentence)

		if len(runes) > maxChars {
			// flush whatever accumulated, then force-split the oversized
			// sentence at fixed boundaries
			if s := strings.TrimSpace(string(buf)); s != "" {
				chunks = append(chunks, s)
			}
			forced := forceSplit(runes, maxChars, overlap)
			chunks = append(chunks, forced[:len(forced)-1]...)
			// the final slice becomes the running buffer so following
			// sentences can still join it
			buf = []rune(forced[len(forced)-1])
			continue
		}

		if len(buf) > 0 && len(buf)+1+len(runes) > maxChars {
			emitted := strings.TrimSpace(string(buf))
			if emitted != "" {
				chunks = append(chunks, emitted)
			}
			buf = tail(buf, overlap)
			// drop the seed if even the seed plus this sentence would not
			// fit, so only force-split chunks ever exceed maxChars
			if len(buf)+1+len(runes) > maxChars {
				buf = nil
			}
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, runes...)
	}
	if s := strings.TrimSpace(string(buf)); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

func splitSentences(text string) []string {
	matches := sentenceSplitter.FindAllStringSubmatch(text, -1)
	var sentences []string
	consumed := 0
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s != "" {
			sentences = append(sentences, s)
		}
		consumed += len(m[0])
	}
	// trailing text without sentence-ending punctuation
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	return sentences
}

// forceSplit cuts an oversized sentence at fixed rune boundaries of size
// maxChars, each subsequent slice starting overlap runes before the end of
// the previous slice.
func forceSplit(runes []rune, maxChars, overlap int) []string {
	var out []string
	start := 0
	for {
		end := start + maxChars
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		out = append(out, string(runes[start:end]))
		start = end - overlap
	}
}

func tail(runes []rune, n int) []rune {
	if len(runes) <= n {
		return append([]rune(nil), runes...)
	}
	return append([]rune(nil), runes[len(runes)-n:]...)
}
