package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"deepsearch/src/infrastructure/integrations/ollama"
)

func TestGetEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q, want /api/embeddings", r.URL.Path)
		}
		var req ollama.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "some text" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(ollama.EmbeddingResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	client := ollama.NewClient(srv.URL+"/api", srv.Client())
	got, err := client.GetEmbedding(context.Background(), "nomic-embed-text", "some text")
	if err != nil {
		t.Fatalf("GetEmbedding() error = %v", err)
	}
	if want := []float32{0.1, 0.2, 0.3}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetEmbedding() = %v, want %v", got, want)
	}
}

func TestGetEmbeddingServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := ollama.NewClient(srv.URL+"/api", srv.Client())
	if _, err := client.GetEmbedding(context.Background(), "missing", "text"); err == nil {
		t.Error("GetEmbedding() error = nil, want error on 404")
	}
}

func TestGenerateCollectsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req ollama.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if !req.Stream {
			t.Error("stream = false, want true")
		}
		if req.System != "sys" || req.Prompt != "ask" {
			t.Errorf("request = %+v", req)
		}

		lines := []ollama.GenerateResponse{
			{Response: "Hello"},
			{Response: " world"},
			{Response: "!", Done: true, PromptEvalCount: 5, EvalCount: 8},
		}
		enc := json.NewEncoder(w)
		for _, line := range lines {
			enc.Encode(line)
		}
	}))
	defer srv.Close()

	client := ollama.NewClient(srv.URL+"/api", srv.Client())
	got, err := client.Generate(context.Background(), "llama3.1", "sys", "ask")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Text != "Hello world!" {
		t.Errorf("Text = %q, want %q", got.Text, "Hello world!")
	}
	if got.PromptTokens != 5 || got.CompletionTokens != 8 {
		t.Errorf("tokens = %d/%d, want 5/8", got.PromptTokens, got.CompletionTokens)
	}
}

func TestGenerateTruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Stream ends without a done line.
		json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "partial"})
	}))
	defer srv.Close()

	client := ollama.NewClient(srv.URL+"/api", srv.Client())
	if _, err := client.Generate(context.Background(), "llama3.1", "", "ask"); err == nil {
		t.Error("Generate() error = nil, want error for truncated stream")
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models": [{"name": "llama3.1"}, {"name": "nomic-embed-text"}]}`))
	}))
	defer srv.Close()

	client := ollama.NewClient(srv.URL+"/api", srv.Client())
	got, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if want := []string{"llama3.1", "nomic-embed-text"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Models() = %v, want %v", got, want)
	}
}
