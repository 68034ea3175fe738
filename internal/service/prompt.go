package service

import (
	"fmt"
	"strings"
)

// DefaultFlashcardCount is used when the caller does not ask for a specific
// number of cards.
const DefaultFlashcardCount = 10

// BuildAnswerPrompt assembles the grounded question-answering prompt. Each
// context block is numbered and labeled with its source so the model can
// cite where an answer came from.
func BuildAnswerPrompt(query string, window ContextWindow) string {
	var b strings.Builder
	b.WriteString("You are a study assistant. Answer the question using only the context below.\n")
	b.WriteString("If the context does not contain the answer, say so. Cite sources by name.\n\n")
	b.WriteString("Context:\n")
	for i, hit := range window.Hits {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, hit.Source, strings.TrimSpace(hit.Text))
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n")
	return b.String()
}

// BuildFlashcardPrompt assembles the flashcard-generation prompt. The model
// is instructed to return a bare JSON array so the strict parse path is the
// expected one.
func BuildFlashcardPrompt(count int, window ContextWindow) string {
	if count <= 0 {
		count = DefaultFlashcardCount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create %d study flashcards from the material below.\n", count)
	b.WriteString("Respond with only a JSON array of objects with \"front\" and \"back\" string fields.\n")
	b.WriteString("No prose, no markdown fences.\n\n")
	b.WriteString("Material:\n")
	for i, hit := range window.Hits {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, hit.Source, strings.TrimSpace(hit.Text))
	}
	return b.String()
}
