package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestChatCompletionSuccess(t *testing.T) {
	t.Parallel()

	var gotReq providerChatRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}

		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}

		resp := providerChatResponse{
			ID:      "chatcmpl-1",
			Object:  "chat.completion",
			Created: time.Unix(1_700_000_000, 0).Unix(),
			Model:   "gpt-4",
			Choices: []providerChatChoice{
				{
					Index: 0,
					Message: ChatMessage{
						Role:    RoleAssistant,
						Content: "response",
					},
					FinishReason: "stop",
				},
			},
			Usage: &providerUsage{
				PromptTokens:     3,
				CompletionTokens: 2,
				TotalTokens:      5,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	req := &ChatRequest{
		Model: "gpt-4",
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "ping"},
		},
		Temperature: 0.3,
		TopP:        0.9,
		MaxTokens:   50,
	}

	resp, err := client.ChatCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected Authorization header: %s", gotAuth)
	}
	if gotReq.ResponseFormat != nil {
		t.Fatalf("plain request should not set response_format: %#v", gotReq.ResponseFormat)
	}
	if gotReq.Model != req.Model {
		t.Fatalf("expected model %s, got %s", req.Model, gotReq.Model)
	}
	if len(gotReq.Messages) != len(req.Messages) || gotReq.Messages[0].Content != "ping" {
		t.Fatalf("unexpected request messages: %#v", gotReq.Messages)
	}

	if resp == nil || len(resp.Choices) != 1 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Choices[0].Message.Content != "response" {
		t.Fatalf("unexpected response message: %#v", resp.Choices[0].Message)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Fatalf("usage not mapped correctly: %#v", resp.Usage)
	}
}

func TestChatCompletionValidationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("server should not be called for invalid request")
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer closeClient(client)

	_, err = client.ChatCompletion(context.Background(), &ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "invalid request") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGenerateJSONMode(t *testing.T) {
	t.Parallel()

	var gotReq providerChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providerChatResponse{
			Model: "gpt-4o-mini",
			Choices: []providerChatChoice{{
				Message: ChatMessage{Role: RoleAssistant, Content: `{"score":80}`},
			}},
			Usage: &providerUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	gen, err := client.Generate(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	}, GenerateOptions{Temperature: 0.9, MaxTokens: 500, JSONMode: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("json mode not forwarded: %#v", gotReq.ResponseFormat)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("default model not applied: %s", gotReq.Model)
	}
	if gotReq.MaxTokens != 500 {
		t.Fatalf("max tokens not forwarded: %d", gotReq.MaxTokens)
	}
	if gen.Content != `{"score":80}` || gen.Provider != ProviderOpenAI {
		t.Fatalf("unexpected generation: %#v", gen)
	}
	if gen.Usage.TotalTokens != 15 {
		t.Fatalf("usage not mapped: %#v", gen.Usage)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providerChatResponse{
			Choices: []providerChatChoice{{Message: ChatMessage{Role: RoleAssistant, Content: "ok"}}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "k",
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	gen, err := client.Generate(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Content != "ok" {
		t.Fatalf("unexpected content: %s", gen.Content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(providerChatResponse{
			Choices: []providerChatChoice{{Message: ChatMessage{Role: RoleAssistant}}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.Generate(context.Background(), []ChatMessage{{Role: RoleUser, Content: "hi"}}, GenerateOptions{})
	if err != ErrEmptyCompletion {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestNewGeneratorUnsupportedProvider(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(context.Background(), ProviderConfig{Provider: "claude"}, zaptest.NewLogger(t))
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewGeminiClient(context.Background(), GeminiConfig{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func closeClient(c *OpenAIClient) {
	_ = c.Close()
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	withHeader := func(v string) *http.Response {
		return &http.Response{Header: http.Header{"Retry-After": []string{v}}}
	}

	assert.Equal(t, 2*time.Second, parseRetryAfter(withHeader("2"), now))
	assert.Equal(t, 5*time.Minute, parseRetryAfter(withHeader("3600"), now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(withHeader(now.Add(30*time.Second).Format(http.TimeFormat)), now))
	assert.Zero(t, parseRetryAfter(withHeader(now.Add(-time.Minute).Format(http.TimeFormat)), now))
	assert.Zero(t, parseRetryAfter(withHeader("soon"), now))
	assert.Zero(t, parseRetryAfter(&http.Response{Header: http.Header{}}, now))
	assert.Zero(t, parseRetryAfter(nil, now))
}

func TestComputeBackoffBounds(t *testing.T) {
	for attempt := range 20 {
		d := computeBackoff(100*time.Millisecond, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Minute)
	}
}
