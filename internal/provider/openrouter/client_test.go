package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/CodeWithJuber/ai-painting-generator/internal/provider"
)

func toolCallResponse(arguments string) string {
	resp := map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"tool_calls": []map[string]any{{
					"function": map[string]any{"arguments": arguments},
				}},
			},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGenerateConcept(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(toolCallResponse(`{"summary":"a fox in snow","fullPrompt":"Paint a fox in fresh snow"}`)))
	}))
	defer server.Close()

	client := New("test-key", server.URL, "test-model")
	concept, err := client.GenerateConcept(context.Background(), provider.ConceptRequest{
		TitleText:      "Winter",
		Instructions:   "cold colors",
		PriorSummaries: []string{"a bear", "an owl"},
	})
	if err != nil {
		t.Fatalf("GenerateConcept: %v", err)
	}

	if concept.Summary != "a fox in snow" || concept.FullPrompt != "Paint a fox in fresh snow" {
		t.Errorf("concept = %+v", concept)
	}

	t.Run("forces the idea tool", func(t *testing.T) {
		if gotReq.ToolChoice.Function.Name != "savePaintingIdea" {
			t.Errorf("tool_choice = %+v", gotReq.ToolChoice)
		}
		if len(gotReq.Tools) != 1 || gotReq.Tools[0].Function.Name != "savePaintingIdea" {
			t.Errorf("tools = %+v", gotReq.Tools)
		}
	})

	t.Run("prompt carries prior ideas", func(t *testing.T) {
		if len(gotReq.Messages) != 2 {
			t.Fatalf("messages = %d, want 2", len(gotReq.Messages))
		}
		user := gotReq.Messages[1].Content
		if !strings.Contains(user, "a bear; an owl") {
			t.Errorf("user prompt missing prior summaries: %s", user)
		}
		if !strings.Contains(user, "cold colors") {
			t.Errorf("user prompt missing instructions: %s", user)
		}
	})
}

func TestGenerateConceptErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		client := New("", "http://unused", "m")
		_, err := client.GenerateConcept(context.Background(), provider.ConceptRequest{TitleText: "x"})
		if err == nil {
			t.Fatal("expected error without API key")
		}
	})

	t.Run("rate limit maps to provider error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := New("k", server.URL, "m")
		_, err := client.GenerateConcept(context.Background(), provider.ConceptRequest{TitleText: "x"})

		var perr *provider.Error
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want *provider.Error", err)
		}
		if perr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("status = %d", perr.StatusCode)
		}
		if !strings.Contains(perr.Message, "rate limit") {
			t.Errorf("message = %q", perr.Message)
		}
	})

	t.Run("missing tool call", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[{"message":{}}]}`))
		}))
		defer server.Close()

		client := New("k", server.URL, "m")
		_, err := client.GenerateConcept(context.Background(), provider.ConceptRequest{TitleText: "x"})
		if err == nil {
			t.Fatal("expected error for missing tool call")
		}
	})

	t.Run("incomplete arguments", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(toolCallResponse(`{"summary":"only half"}`)))
		}))
		defer server.Close()

		client := New("k", server.URL, "m")
		_, err := client.GenerateConcept(context.Background(), provider.ConceptRequest{TitleText: "x"})
		if err == nil {
			t.Fatal("expected error for incomplete idea")
		}
	})
}
