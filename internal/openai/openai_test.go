package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/bymbot/internal/config"
	"github.com/edgard/bymbot/internal/llm"
	"github.com/edgard/bymbot/internal/logger"
)

type weatherTool struct{}

func (weatherTool) Name() string { return "weather" }
func (weatherTool) Description() string { return "weather for a city" }
func (weatherTool) Parameters() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{"city": llm.String("city name")}, "city")
}
func (weatherTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	var p struct {
		City string `json:"city"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return "", err
	}
	return p.City + ": 晴 25°C", nil
}

const toolCallResponse = `{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls",
"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"weather","arguments":"{\"city\":\"北京\"}"}}]}}]}`

const textResponse = `{"id":"2","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop",
"message":{"role":"assistant","content":" 北京今天晴。 "}}]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&config.OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "test-model"}, 3, logger.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestGenerateRunsTools(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		bodies []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		n := len(bodies)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			fmt.Fprint(w, toolCallResponse)
			return
		}
		fmt.Fprint(w, textResponse)
	})

	resp, err := c.Generate(context.Background(), &llm.Request{
		System:          "你是小助手",
		Text:            "北京天气",
		Temperature:     1,
		MaxOutputTokens: 500,
		Tools:           []llm.Tool{weatherTool{}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "北京今天晴。" {
		t.Errorf("Text = %q, want %q", resp.Text, "北京今天晴。")
	}
	if resp.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", resp.ToolCalls)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("requests = %d, want 2", len(bodies))
	}
	if !strings.Contains(bodies[0], `"max_tokens":500`) || !strings.Contains(bodies[0], `"name":"weather"`) {
		t.Errorf("first request missing limits or tools: %s", bodies[0])
	}
	if !strings.Contains(bodies[1], `"tool_call_id":"call_1"`) || !strings.Contains(bodies[1], "晴 25°C") {
		t.Errorf("second request missing tool result: %s", bodies[1])
	}
}

func TestGeneratePermanentError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	})

	if _, err := c.Generate(context.Background(), &llm.Request{Text: "hi"}); err == nil {
		t.Fatal("Generate() error = nil, want permanent error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", n)
	}
}

func TestUserMessageWithImage(t *testing.T) {
	t.Parallel()

	msg := userMessage(&llm.Request{Text: "[图片]", Image: &llm.Image{Data: []byte("x"), MIMEType: "image/jpeg"}})
	if len(msg.MultiContent) != 2 {
		t.Fatalf("len(MultiContent) = %d, want 2", len(msg.MultiContent))
	}
	if got := msg.MultiContent[1].ImageURL.URL; !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("image url = %q, want data url", got)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", errs: []error{nil}, wantCalls: 1},
		{name: "transient then ok", errs: []error{errors.New("timeout"), nil}, wantCalls: 2},
		{name: "exhausted", errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}, wantCalls: 3, wantErr: true},
		{name: "permanent", errs: []error{errors.New("context_length_exceeded")}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calls := 0
			_, err := retryWithBackoff(context.Background(), 3, time.Millisecond, func() (string, error) {
				err := tt.errs[calls]
				calls++
				return "ok", err
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("retryWithBackoff() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, 0, logger.Discard()); !errors.Is(err, ErrNilConfig) {
		t.Errorf("New(nil) error = %v, want ErrNilConfig", err)
	}
	if _, err := New(&config.OpenAIConfig{Model: "m"}, 0, logger.Discard()); err == nil {
		t.Error("New() without key error = nil, want error")
	}
}
