package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/doctrans/internal/config"
	"github.com/dgallion1/doctrans/internal/jobs"
	"github.com/dgallion1/doctrans/internal/llm"
	"github.com/dgallion1/doctrans/internal/ratelimit"
	"github.com/dgallion1/doctrans/internal/translate"
)

const testAPIKey = "test-api-key"

// newTestServer wires a full server against a local echo completion
// backend, so uploads translate to themselves.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		start := strings.Index(prompt, "{")
		end := strings.LastIndex(prompt, "}")
		if start < 0 || end < start {
			http.Error(w, "no payload", http.StatusBadRequest)
			return
		}
		content, _ := json.Marshal(prompt[start : end+1])
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s},\"finish_reason\":\"stop\"}]}\n\n", content)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(backend.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := llm.NewClient(backend.URL, "test-key")
	rate := ratelimit.New(ratelimit.Config{
		Limit: 1000, Period: time.Second, MaxRetry: 1,
		InitialDelay: time.Millisecond,
		Retryable:    llm.IsRetryable,
		Log:          log,
	})
	cfg := config.Config{
		APIKey:         testAPIKey,
		TranslateModel: "echo",
		RestructModel:  "echo",
		SourceLang:     "English",
		TargetLang:     "German",
		MaxUploadBytes: 1 << 20,
	}
	tr := translate.New(client, rate, translate.Config{
		SourceLang:       cfg.SourceLang,
		TargetLang:       cfg.TargetLang,
		TranslateModel:   cfg.TranslateModel,
		RestructModel:    cfg.RestructModel,
		MaxSegmentTokens: 1000,
	}, log)

	orch := jobs.NewOrchestrator(jobs.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}, tr, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, client, log, cfg)
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/translate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func authedGet(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func TestServer_TranslateLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "page.html", "<p>Hello <b>World</b></p>", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body)
	}
	var submitted struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if submitted.JobID == "" {
		t.Fatal("empty job_id")
	}

	var snap jobs.Snapshot
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = httptest.NewRecorder()
		s.ServeHTTP(rec, authedGet(submitted.PollURL))
		if rec.Code != http.StatusOK {
			t.Fatalf("status poll = %d: %s", rec.Code, rec.Body)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snap.Status == jobs.StatusCompleted || snap.Status == jobs.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != jobs.StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Success != 1 {
		t.Errorf("progress = %+v", snap.Progress)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, authedGet(submitted.PollURL+"/result"))
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/html") {
		t.Errorf("result content type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "Hello <b>World</b>") {
		t.Errorf("result body = %s", rec.Body)
	}
}

func TestServer_RejectsUnsupportedFile(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "archive.zip", "junk", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestServer_EmptyTargetLangFallsBack(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, uploadRequest(t, "page.html", "<p>x</p>", map[string]string{"target_lang": ""}))
	// Empty field falls back to the configured language, so this succeeds.
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestServer_AuthRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing auth status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad key status = %d", rec.Code)
	}
}

func TestServer_JobNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authedGet("/api/jobs/does-not-exist"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestServer_LLMStats(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, authedGet("/api/stats/llm"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out struct {
		TranslateModel string `json:"translate_model"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TranslateModel != "echo" {
		t.Errorf("translate_model = %q", out.TranslateModel)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"report.html", "report.html"},
		{"../../etc/passwd", "passwd"},
		{"dir/file.md", "file.md"},
		{"", "unnamed"},
	}
	for _, c := range cases {
		if got := sanitizeFilename(c.in); got != c.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
