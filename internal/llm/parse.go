package llm

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/recallio/recallio/internal/domain"
)

// ParseMode records which code path recovered the structured output. The
// fallback path is deliberately visible so loose extraction never masquerades
// as a clean parse.
type ParseMode string

const (
	ParseStrict   ParseMode = "strict"
	ParseFallback ParseMode = "fallback"
)

// Flashcard is one generated study card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Accepted top-level field names when the model wraps the array in an
// object instead of returning it bare.
var flashcardFields = []string{"flashcards", "cards"}

const rawExcerptLimit = 300

// ExtractFlashcards parses a provider response into flashcards.
//
// Strict parsing is tried first: a bare JSON array, then an object keyed by
// any accepted field name. If strict parsing fails, the first bracketed
// array substring of the raw text is extracted and parsed. If both fail the
// error carries a truncated excerpt of the raw response for diagnosis; no
// placeholder content is ever synthesized.
func ExtractFlashcards(raw string) ([]Flashcard, ParseMode, error) {
	trimmed := strings.TrimSpace(raw)

	if cards, ok := parseStrict(trimmed); ok {
		return cards, ParseStrict, nil
	}

	if cards, ok := parseBracketed(trimmed); ok {
		log.Printf("flashcard parse: strict parse failed, recovered via fallback extraction")
		return cards, ParseFallback, nil
	}

	return nil, "", domain.NewDomainError(domain.ErrCodeParse,
		"could not extract flashcards from response: "+excerpt(trimmed))
}

func parseStrict(raw string) ([]Flashcard, bool) {
	if cards, ok := decodeCards([]byte(raw)); ok {
		return cards, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return nil, false
	}
	for _, field := range flashcardFields {
		if inner, present := wrapper[field]; present {
			if cards, ok := decodeCards(inner); ok {
				return cards, true
			}
		}
	}
	return nil, false
}

// parseBracketed scans forward through the raw text trying each balanced
// '['..']' substring as a card array, so stray bracketed tokens in
// surrounding prose don't mask the real array. Last-resort path for
// responses that wrap JSON in prose.
func parseBracketed(raw string) ([]Flashcard, bool) {
	for start := strings.IndexByte(raw, '['); start != -1; {
		if end := matchBracket(raw, start); end != -1 {
			if cards, ok := decodeCards([]byte(raw[start : end+1])); ok {
				return cards, true
			}
		}
		next := strings.IndexByte(raw[start+1:], '[')
		if next == -1 {
			break
		}
		start += 1 + next
	}
	return nil, false
}

// matchBracket returns the index of the ']' that balances the '[' at start,
// skipping brackets inside JSON string literals, or -1 when unbalanced.
func matchBracket(raw string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeCards(data []byte) ([]Flashcard, bool) {
	var cards []Flashcard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, false
	}

	valid := cards[:0]
	for _, card := range cards {
		if strings.TrimSpace(card.Front) != "" && strings.TrimSpace(card.Back) != "" {
			valid = append(valid, card)
		}
	}
	if len(valid) == 0 {
		return nil, false
	}
	return valid, true
}

func excerpt(raw string) string {
	if len(raw) <= rawExcerptLimit {
		return raw
	}
	return raw[:rawExcerptLimit] + "..."
}
