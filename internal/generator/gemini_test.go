package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testRequest() Request {
	return Request{
		ProductName:    "Acme Widget",
		TargetAudience: "makers",
		Theme:          "Welcome",
		Objective:      "introduce the product",
		Features:       []string{"fast", "cheap"},
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()
	p := testRequest().Prompt()

	for _, want := range []string{
		"marketing copywriter",
		"'Acme Widget'",
		"'makers'",
		"Theme: Welcome",
		"Objective: introduce the product",
		"Features: fast, cheap",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestGeminiGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "Acme Widget") {
			t.Errorf("unexpected prompt payload: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "Hello "},
					{"text": "makers!"},
				}}},
			},
		})
	}))
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	text, err := g.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Hello makers!" {
		t.Fatalf("text = %q", text)
	}
}

func TestGeminiGenerateAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	}))
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	_, err = g.Generate(context.Background(), testRequest())
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want quota message", err)
	}
}

func TestGeminiGenerateEmptyCandidates(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	g, err := NewGemini(GeminiConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	if _, err := g.Generate(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewGemini(GeminiConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
