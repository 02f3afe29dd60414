package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TobiSchelling/Folio/internal/config"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithProse(t *testing.T) {
	result := ParseJSONResponse("Here is the analysis:\n{\"key\": \"value\"}\nHope this helps.")
	if result == nil || result["key"] != "value" {
		t.Errorf("expected object to be extracted, got %v", result)
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if ParseJSONResponse("not json at all") != nil {
		t.Error("expected nil for invalid JSON")
	}
	if ParseJSONResponse("") != nil {
		t.Error("expected nil for empty string")
	}
	if ParseJSONResponse("{broken") != nil {
		t.Error("expected nil for truncated JSON")
	}
}

func TestDecodeArray(t *testing.T) {
	var out []struct {
		Query string `json:"query"`
	}
	err := DecodeArray("```json\n[{\"query\": \"a\"}, {\"query\": \"b\"}]\n```", &out)
	if err != nil {
		t.Fatalf("DecodeArray: %v", err)
	}
	if len(out) != 2 || out[1].Query != "b" {
		t.Errorf("unexpected result: %+v", out)
	}

	if err := DecodeArray("{}", &out); err == nil {
		t.Error("expected error when no array present")
	}
}

func TestGetters(t *testing.T) {
	m := ParseJSONResponse(`{"s": "x", "n": 7, "list": ["a", "", 3, "b"], "one": "solo", "obj": {"k": "v"}}`)
	if GetString(m, "s") != "x" || GetString(m, "n") != "" {
		t.Error("unexpected GetString result")
	}
	if GetInt(m, "n", 0) != 7 || GetInt(m, "missing", 5) != 5 {
		t.Error("unexpected GetInt result")
	}
	if got := GetStrings(m, "list"); len(got) != 2 || got[1] != "b" {
		t.Errorf("unexpected GetStrings result: %v", got)
	}
	if got := GetStrings(m, "one"); len(got) != 1 || got[0] != "solo" {
		t.Errorf("expected bare string to become a list, got %v", got)
	}
	if GetString(GetMap(m, "obj"), "k") != "v" {
		t.Error("unexpected GetMap result")
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"max_tokens":64`) {
			t.Errorf("expected max_tokens in body, got %s", body)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	p := &AnthropicProvider{Model: "m", APIKey: "key", BaseURL: srv.URL, client: srv.Client()}
	out, err := p.Generate(context.Background(), "hi", 64)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello world" {
		t.Errorf("expected 'hello world', got %q", out)
	}
}

func TestAnthropicGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &AnthropicProvider{Model: "m", APIKey: "key", BaseURL: srv.URL, client: srv.Client()}
	if _, err := p.Generate(context.Background(), "hi", 64); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "key", BaseURL: srv.URL, client: srv.Client()}
	out, err := p.Generate(context.Background(), "hi", 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected 'ok', got %q", out)
	}
}

func TestOllamaGenerateAndConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		case "/api/chat":
			w.Write([]byte(`{"message":{"content":"pong"}}`))
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL+"/")
	if !p.IsConfigured() {
		t.Error("expected ollama to be configured")
	}
	out, err := p.Generate(context.Background(), "ping", 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "pong" {
		t.Errorf("expected 'pong', got %q", out)
	}
}

func TestCreateProviderFallsBack(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "")
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("TEST_GEMINI_KEY", "")

	p := CreateProvider(config.LLM{
		Provider:     "anthropic",
		APIKeyEnv:    "TEST_ANTHROPIC_KEY",
		OpenAIModel:  "gpt-4o-mini",
		OpenAIKeyEnv: "TEST_OPENAI_KEY",
		GeminiKeyEnv: "TEST_GEMINI_KEY",
	})
	if _, ok := p.(*OpenAIProvider); !ok {
		t.Errorf("expected OpenAI fallback, got %T", p)
	}
}

func TestCreateProviderNone(t *testing.T) {
	t.Setenv("TEST_EMPTY_KEY", "")
	p := CreateProvider(config.LLM{
		Provider:     "gemini",
		APIKeyEnv:    "TEST_EMPTY_KEY",
		OpenAIKeyEnv: "TEST_EMPTY_KEY",
		GeminiKeyEnv: "TEST_EMPTY_KEY",
	})
	if p != nil {
		t.Errorf("expected nil provider, got %T", p)
	}
}
