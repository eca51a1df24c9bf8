package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sseBody(fragments []string, finish string) string {
	out := ""
	for i, f := range fragments {
		fr := "null"
		if i == len(fragments)-1 {
			fr = fmt.Sprintf("%q", finish)
		}
		out += fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", f, fr)
	}
	out += "data: [DONE]\n\n"
	return out
}

func TestStreamComplete_AccumulatesFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody([]string{"Hel", "lo ", "world"}, "stop"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	content, finish, err := c.StreamComplete(context.Background(), Session{Model: "m"}, "hi", Options{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if content != "Hello world" {
		t.Errorf("content = %q", content)
	}
	if finish != FinishStop {
		t.Errorf("finish = %q, want %q", finish, FinishStop)
	}
}

func TestStreamComplete_ReportsLengthTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sseBody([]string{"partial"}, "length"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, finish, err := c.StreamComplete(context.Background(), Session{Model: "m"}, "hi", Options{})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if finish != FinishLength {
		t.Errorf("finish = %q, want %q", finish, FinishLength)
	}
}

func TestStreamComplete_RateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"rate_limit"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, _, err := c.StreamComplete(context.Background(), Session{Model: "m"}, "hi", Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("429 should map to a retryable error, got %T: %v", err, err)
	}
	var re *RetryableError
	if errors.As(err, &re) && re.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", re.StatusCode)
	}
}

func TestStreamComplete_ClientErrorIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"invalid_request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	_, _, err := c.StreamComplete(context.Background(), Session{Model: "m"}, "hi", Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Error("400 must not be retryable")
	}
}

func TestComplete_RequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("auth header = %q", auth)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	s := Session{
		Model:   "test-model",
		System:  "be helpful",
		History: []Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}},
	}
	content, finish, err := c.Complete(context.Background(), s, "c", Options{Temperature: 0.01, JSONMode: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != "ok" || finish != FinishStop {
		t.Errorf("content=%q finish=%q", content, finish)
	}

	if got.Model != "test-model" || got.Stream {
		t.Errorf("model=%q stream=%v", got.Model, got.Stream)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", got.ResponseFormat)
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
	if got.Messages[3].Content != "c" {
		t.Errorf("final user message = %q", got.Messages[3].Content)
	}
}

func TestCallStats_SnapshotAggregates(t *testing.T) {
	s := NewCallStats(time.Hour)
	for _, ms := range []int64{10, 20, 30, 40} {
		s.Record(ms)
	}
	snap := s.Snapshot()
	if snap.Count != 4 {
		t.Errorf("count = %d", snap.Count)
	}
	if snap.MaxMs != 40 {
		t.Errorf("max = %d", snap.MaxMs)
	}
	if snap.AvgMs != 25 {
		t.Errorf("avg = %v", snap.AvgMs)
	}
}
