package rag_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"deepsearch/src/core/rag"
)

type fakeProvider struct {
	completion *rag.Completion
	err        error

	gotModel  string
	gotSystem string
	gotPrompt string
}

func (f *fakeProvider) Generate(ctx context.Context, model, system, prompt string) (*rag.Completion, error) {
	f.gotModel = model
	f.gotSystem = system
	f.gotPrompt = prompt
	return f.completion, f.err
}

func TestBuildAnswerPrompt(t *testing.T) {
	contexts := []rag.QueryHit{
		{Text: "first passage", Source: "a.txt"},
		{Text: "second passage", Source: "b.txt"},
	}

	got := rag.BuildAnswerPrompt("What is this?", contexts)
	want := "Context:\n[1] first passage\n\n[2] second passage\n\nQuestion: What is this?\n\nAnswer:"
	if got != want {
		t.Errorf("BuildAnswerPrompt() = %q, want %q", got, want)
	}
}

func TestBuildAnswerPromptNoContext(t *testing.T) {
	got := rag.BuildAnswerPrompt("Anything?", nil)
	want := "Context:\nQuestion: Anything?\n\nAnswer:"
	if got != want {
		t.Errorf("BuildAnswerPrompt() = %q, want %q", got, want)
	}
}

func TestGenerateAnswer(t *testing.T) {
	provider := &fakeProvider{
		completion: &rag.Completion{Text: "the answer", PromptTokens: 12, CompletionTokens: 34},
	}
	svc := rag.NewAnswerService(provider, "llama3.1", "be helpful")

	contexts := []rag.QueryHit{
		{Text: "one", Source: "guide.pdf"},
		{Text: "two", Source: "notes.txt"},
		{Text: "three", Source: "guide.pdf"},
	}

	answer, err := svc.GenerateAnswer(context.Background(), "how?", contexts)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}

	if answer.Text != "the answer" {
		t.Errorf("Text = %q, want %q", answer.Text, "the answer")
	}
	if answer.PromptTokens != 12 || answer.CompletionTokens != 34 {
		t.Errorf("token counts = %d/%d, want 12/34", answer.PromptTokens, answer.CompletionTokens)
	}
	if want := []string{"guide.pdf", "notes.txt"}; !reflect.DeepEqual(answer.Sources, want) {
		t.Errorf("Sources = %v, want %v", answer.Sources, want)
	}

	if provider.gotModel != "llama3.1" {
		t.Errorf("model = %q, want llama3.1", provider.gotModel)
	}
	if provider.gotSystem != "be helpful" {
		t.Errorf("system = %q, want the configured prompt", provider.gotSystem)
	}
	if !strings.Contains(provider.gotPrompt, "[3] three") {
		t.Errorf("prompt %q is missing numbered contexts", provider.gotPrompt)
	}
	if !strings.Contains(provider.gotPrompt, "Question: how?") {
		t.Errorf("prompt %q is missing the question", provider.gotPrompt)
	}
}

func TestGenerateAnswerProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model not loaded")}
	svc := rag.NewAnswerService(provider, "llama3.1", "")

	if _, err := svc.GenerateAnswer(context.Background(), "q", nil); err == nil {
		t.Error("GenerateAnswer() error = nil, want provider error")
	}
}
