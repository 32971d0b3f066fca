package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	retryBackoff = func(int) time.Duration { return time.Millisecond }
}

func openAIServer(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	return p
}

func TestOpenAIComplete(t *testing.T) {
	var got map[string]any
	p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Try isolating x first."},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 6, "total_tokens": 46},
		})
	})

	resp, err := p.Complete(context.Background(), Request{
		System:   "You are a helpful ACT practice assistant.",
		Messages: []Message{{Role: RoleUser, Content: "hint?"}, {Role: RoleAssistant, Content: "sure"}, {Role: RoleUser, Content: "more"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Try isolating x first." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.PromptTokens != 40 || resp.OutputTokens != 6 {
		t.Errorf("usage = %d/%d, want 40/6", resp.PromptTokens, resp.OutputTokens)
	}
	if p.Model() != "gpt-4" || got["model"] != "gpt-4" {
		t.Errorf("model = %q, sent %v", p.Model(), got["model"])
	}

	msgs, _ := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("sent %d messages, want system + 3", len(msgs))
	}
	if first := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
}

func TestOpenAIRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"},
		})
	})

	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T (%v)", err, err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestOpenAIClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "bad"},
		})
	})

	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	var unavailable *ErrProviderUnavailable
	if errors.As(err, &unavailable) {
		t.Errorf("400 should not map to ErrProviderUnavailable")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestAnthropicComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"content":       []map[string]any{{"type": "text", "text": `[{"question":"q"}]`}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 12, "output_tokens": 30},
		})
	}))
	t.Cleanup(server.Close)

	p, err := NewAnthropic(AnthropicConfig{APIKey: "k", Model: "claude-test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	resp, err := p.Complete(context.Background(), Request{
		System:   "Generate ACT questions.",
		Messages: []Message{{Role: RoleUser, Content: "Subject: math"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != `[{"question":"q"}]` || resp.PromptTokens != 12 || resp.OutputTokens != 30 {
		t.Errorf("response = %+v", resp)
	}
	if got["max_tokens"] != float64(8192) {
		t.Errorf("max_tokens = %v, want 8192", got["max_tokens"])
	}
	if _, ok := got["system"]; !ok {
		t.Errorf("system prompt not sent")
	}
}

func TestAnthropicServerErrorIsUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	t.Cleanup(server.Close)

	p, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: server.URL, Attempts: 3})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	_, err = p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var unavailable *ErrProviderUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %T (%v)", err, err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestMockFIFO(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock(MockResponse{Content: "one"}, MockResponse{Err: boom})

	resp, err := m.Complete(context.Background(), Request{System: "s1"})
	if err != nil || resp.Content != "one" {
		t.Fatalf("first = %v, %v", resp, err)
	}
	if _, err := m.Complete(context.Background(), Request{System: "s2"}); !errors.Is(err, boom) {
		t.Fatalf("second err = %v, want boom", err)
	}
	var unavailable *ErrProviderUnavailable
	if _, err := m.Complete(context.Background(), Request{}); !errors.As(err, &unavailable) {
		t.Fatalf("empty queue err = %v", err)
	}

	m.Reply = func(req Request) string { return "echo " + req.System }
	resp, err = m.Complete(context.Background(), Request{System: "s4"})
	if err != nil || resp.Content != "echo s4" {
		t.Fatalf("reply = %v, %v", resp, err)
	}
	if calls := m.Calls(); len(calls) != 4 || calls[1].System != "s2" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, "test", 5, func() error {
		calls++
		cancel()
		return &ErrProviderUnavailable{Err: errors.New("down")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := New(context.Background(), Config{Provider: "openai"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
	p, err := New(context.Background(), Config{Provider: "mock"})
	if err != nil || p.Model() != "mock" {
		t.Fatalf("mock provider = %v, %v", p, err)
	}
}
