package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateParsesChatResponse(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  今天表現很棒！  "}}]}`))
	}))
	defer server.Close()

	svc := NewEnrichmentService("test-key", nil, "")
	svc.SetBaseURL(server.URL)
	svc.SetHTTPClient(server.Client())

	text, err := svc.Generate(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "今天表現很棒！" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	svc := NewEnrichmentService("test-key", nil, "")
	svc.SetBaseURL(server.URL)
	svc.SetHTTPClient(server.Client())

	if _, err := svc.Generate(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error on 429 response")
	} else if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error message, got %v", err)
	}
}

func TestGenerateWithoutKey(t *testing.T) {
	svc := NewEnrichmentService("", nil, "")

	if _, err := svc.Generate(context.Background(), "system", "user"); !errors.Is(err, ErrAPIKeyMissing) {
		t.Fatalf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestRenderCoachHTMLSanitizes(t *testing.T) {
	svc := NewEnrichmentService("test-key", nil, "")

	html, err := svc.RenderCoachHTML("**加油**\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("RenderCoachHTML returned error: %v", err)
	}
	if !strings.Contains(html, "<strong>加油</strong>") {
		t.Fatalf("expected markdown to render, got %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script tag to be stripped, got %q", html)
	}
}
