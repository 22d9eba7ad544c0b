package rag

import (
	"context"
	"fmt"
	"strings"
)

// Answer is a synthesized reply together with the distinct documents it was
// grounded on and the token usage of the generation call.
type Answer struct {
	Text             string
	Sources          []string
	PromptTokens     int
	CompletionTokens int
}

// AnswerService turns retrieved context into an answer via an LLM.
type AnswerService interface {
	GenerateAnswer(ctx context.Context, question string, contexts []QueryHit) (*Answer, error)
}

type answerService struct {
	provider     LLMProvider
	model        string
	systemPrompt string
}

func NewAnswerService(provider LLMProvider, model, systemPrompt string) AnswerService {
	return &answerService{
		provider:     provider,
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (s *answerService) GenerateAnswer(ctx context.Context, question string, contexts []QueryHit) (*Answer, error) {
	prompt := BuildAnswerPrompt(question, contexts)

	completion, err := s.provider.Generate(ctx, s.model, s.systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources := make([]string, 0, len(contexts))
	for _, c := range contexts {
		sources = append(sources, c.Source)
	}

	return &Answer{
		Text:             completion.Text,
		Sources:          distinct(sources),
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	}, nil
}

// BuildAnswerPrompt numbers every context passage so the model can refer to
// them, then appends the question.
func BuildAnswerPrompt(question string, contexts []QueryHit) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, c.Text)
	}
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:", question)
	return sb.String()
}
