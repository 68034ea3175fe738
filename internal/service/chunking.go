package service

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// charsPerToken is the approximation used to convert a token budget
	// into a character budget without calling a tokenizer.
	charsPerToken = 4

	// DefaultChunkTokens is the target chunk size used at ingestion.
	DefaultChunkTokens = 300
)

var paragraphBoundary = regexp.MustCompile(`\n[ \t]*\n+`)

// SplitText splits extracted document text into chunks of at most
// targetTokens*charsPerToken characters.
//
// Paragraphs (blank-line separated) are accumulated into a buffer and the
// buffer is flushed whenever the next paragraph would push it over the
// limit. A flushed buffer that is itself oversized (a single long paragraph)
// is re-split on sentence boundaries with the same accumulate-and-flush
// rule, and a sentence run that still exceeds the limit falls back to
// fixed-length slicing. Every non-whitespace character of the input lands in
// exactly one chunk and ordering is preserved. Empty input yields no chunks.
func SplitText(text string, targetTokens int) []string {
	clean := strings.TrimSpace(normalizeNewlines(text))
	if clean == "" {
		return nil
	}
	if targetTokens <= 0 {
		targetTokens = DefaultChunkTokens
	}
	limit := targetTokens * charsPerToken

	var chunks []string
	for _, buf := range accumulate(splitParagraphs(clean), "\n\n", limit) {
		if len(buf) <= limit {
			chunks = append(chunks, buf)
			continue
		}
		for _, run := range accumulate(splitSentences(buf), " ", limit) {
			if len(run) <= limit {
				chunks = append(chunks, run)
				continue
			}
			chunks = append(chunks, sliceFixed(run, limit)...)
		}
	}

	return chunks
}

// accumulate joins consecutive parts into buffers no larger than limit,
// flushing before a part that would overflow. A part larger than limit on
// its own becomes its own buffer and is handled by the caller.
func accumulate(parts []string, sep string, limit int) []string {
	var out []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, s)
		}
		buf.Reset()
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(sep)+len(part) > limit {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(part)
	}
	flush()

	return out
}

func splitParagraphs(text string) []string {
	return paragraphBoundary.Split(text, -1)
}

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if isTerminal(runes[i]) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, string(runes[start:i+1]))
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sliceFixed cuts text into limit-sized pieces, used when neither paragraph
// nor sentence boundaries exist.
func sliceFixed(text string, limit int) []string {
	var out []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func normalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\r\n", "\n")
}
