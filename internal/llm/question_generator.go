package llm

import (
	"context"
	"fmt"
)

const questionGeneratorSystemPrompt = `You generate evaluation questions from
a document excerpt. For each question, identify the specific fact in the
text that answers it, so retrieval can later be checked against that fact.
Respond as JSON: {"questions": [{"fact": "...", "question": "..."}]}`

// GeneratedQuestion is one {fact, question} pair produced from a source
// document, matching the original question_generator_agent's structured
// output schema.
type GeneratedQuestion struct {
	Fact     string `json:"fact"`
	Question string `json:"question"`
}

type questionsJSON struct {
	Questions []GeneratedQuestion `json:"questions"`
}

// QuestionGenerator synthesizes ground-truth evaluation questions from
// document text.
type QuestionGenerator struct {
	chat Chat
}

func NewQuestionGenerator(chat Chat) *QuestionGenerator {
	return &QuestionGenerator{chat: chat}
}

// Generate produces up to n questions from documentText. A malformed
// response yields zero questions rather than an error, since the caller
// (evaluation engine) can simply retry against the next document.
func (q *QuestionGenerator) Generate(ctx context.Context, documentText string, n int) ([]GeneratedQuestion, error) {
	prompt := fmt.Sprintf("Generate %d question(s) from this document excerpt:\n\n%s", n, documentText)
	raw, err := q.chat.GenerateContent(ctx, questionGeneratorSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm.QuestionGenerator.Generate: %w", err)
	}

	parsed, ok := parseJSON[questionsJSON](raw)
	if !ok {
		return nil, nil
	}
	if len(parsed.Questions) > n {
		parsed.Questions = parsed.Questions[:n]
	}
	return parsed.Questions, nil
}
