package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(Config{
		Endpoint:    url,
		APIKey:      "sk-test",
		Model:       "test/model",
		MaxTokens:   200,
		Temperature: 0.1,
		Timeout:     timeout,
		Headers:     map[string]string{"X-Title": "relaybot"},
	}, nil)
}

func TestCompleteSuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if title := r.Header.Get("X-Title"); title != "relaybot" {
			t.Errorf("X-Title = %q", title)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hi there!\n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	res := newTestClient(srv.URL, time.Second).Complete(context.Background(), "system prompt", "hello")
	if !res.OK() {
		t.Fatalf("expected success, got %s: %v", res.Failure, res.Err)
	}
	if res.Text != "  Hi there!\n" {
		t.Errorf("reply must be verbatim, got %q", res.Text)
	}

	if got.Model != "test/model" || got.MaxTokens != 200 || got.Temperature != 0.1 {
		t.Errorf("unexpected request params: %+v", got)
	}
	if len(got.Messages) != 2 ||
		got.Messages[0].Role != "system" || got.Messages[0].Content != "system prompt" ||
		got.Messages[1].Role != "user" || got.Messages[1].Content != "hello" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestCompleteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FailureKind
		target error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, FailureTransport, ErrTransport},
		{"unauthorized", http.StatusUnauthorized, `{}`, FailureTransport, ErrTransport},
		{"missing choices", http.StatusOK, `{"id":"x"}`, FailureMalformed, ErrMalformedResponse},
		{"empty choices", http.StatusOK, `{"choices":[]}`, FailureMalformed, ErrMalformedResponse},
		{"missing message", http.StatusOK, `{"choices":[{"finish_reason":"stop"}]}`, FailureMalformed, ErrMalformedResponse},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, FailureMalformed, ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>oops</html>`, FailureMalformed, ErrMalformedResponse},
		{"error body with 200", http.StatusOK, `{"error":{"message":"rate limited"}}`, FailureMalformed, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res := newTestClient(srv.URL, time.Second).Complete(context.Background(), "sys", "hi")
			if res.OK() {
				t.Fatal("expected failure")
			}
			if res.Failure != tt.want {
				t.Errorf("Failure = %q, want %q", res.Failure, tt.want)
			}
			if !errors.Is(res.Err, tt.target) {
				t.Errorf("Err = %v, want wrapping %v", res.Err, tt.target)
			}
			if res.Text != "" {
				t.Errorf("failure must not carry text, got %q", res.Text)
			}
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	res := newTestClient(srv.URL, 50*time.Millisecond).Complete(context.Background(), "sys", "hi")
	if res.Failure != FailureTransport {
		t.Errorf("Failure = %q, want %q", res.Failure, FailureTransport)
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(url, time.Second).Complete(context.Background(), "sys", "hi")
	if res.Failure != FailureTransport {
		t.Errorf("Failure = %q, want %q", res.Failure, FailureTransport)
	}
}

func TestCompleteSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_ = newTestClient(srv.URL, time.Second).Complete(context.Background(), "sys", "hi")
	if calls != 1 {
		t.Errorf("endpoint called %d times, want exactly 1", calls)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, nil)
	if c.cfg.Endpoint != DefaultEndpoint || c.cfg.Model != DefaultModel {
		t.Errorf("defaults not applied: %+v", c.cfg)
	}
	if c.cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d", c.cfg.MaxTokens)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}
