package ai

import (
	"context"
	"fmt"
	"strings"
)

// MaxSynthesisContextBytes caps the item text handed to the model.
const MaxSynthesisContextBytes = 6000

const synthesisSystemPrompt = `You answer questions about the user's saved notes, documents and links.
Use only the information inside the <context> block. Do not use outside knowledge.
If the context does not contain the answer, reply exactly: "The saved item does not answer this question."
Keep the answer short and in the language of the question.`

// Synthesizer produces a short answer grounded in a single item's text.
type Synthesizer struct {
	llm LLMService
}

// NewSynthesizer creates a Synthesizer backed by llm.
func NewSynthesizer(llm LLMService) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Summarize answers question from content only. An empty or blank model
// answer is returned as "" with a nil error.
func (s *Synthesizer) Summarize(ctx context.Context, content, question string) (string, error) {
	content = TruncateText(content, MaxSynthesisContextBytes)
	user := fmt.Sprintf("<context>\n%s\n</context>\n\nQuestion: %s", content, question)

	answer, err := s.llm.Chat(ctx, []Message{
		SystemPrompt(synthesisSystemPrompt),
		UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
