package analyzer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"feedback_ingest/internal/adapters/analyzer"
	"feedback_ingest/internal/domain"
)

func TestAnalyze_SendsTextAndBearer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/analyze-feedback" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["texto"] != "Quarto sujo" {
			t.Errorf("unexpected body %+v", in)
		}
		_, _ = w.Write([]byte(`{"rating":2,"keyword":"Limpeza","sector":"Governança","problem":"Quarto sujo",
			"allProblems":[{"keyword":"Limpeza","sector":"Governança","problem":"Quarto sujo","problem_detail":"poeira"}]}`))
	}))
	defer ts.Close()

	cl, err := analyzer.New(ts.URL+"/", 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := cl.Analyze(context.Background(), "Quarto sujo", "sk-test")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Rating == nil || *got.Rating != 2 || got.Keyword != "Limpeza" || len(got.AllProblems) != 1 {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if got.AllProblems[0].ProblemDetail != "poeira" {
		t.Fatalf("unexpected problem detail: %+v", got.AllProblems[0])
	}
}

func TestAnalyze_ErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"quota exceeded"}`))
	}))
	defer ts.Close()

	cl, _ := analyzer.New(ts.URL, 100)
	_, err := cl.Analyze(context.Background(), "texto qualquer", "sk-test")
	var ae *analyzer.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusTooManyRequests || ae.Error() != "quota exceeded" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyze_MissingKey(t *testing.T) {
	cl, _ := analyzer.New("http://127.0.0.1:1", 100)
	if _, err := cl.Analyze(context.Background(), "texto", ""); !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestAnalyze_NumericSentiment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sentiment":2,"rating":2,"keyword":"Limpeza","sector":"Governança","problem":"Quarto sujo"}`))
	}))
	defer ts.Close()

	cl, _ := analyzer.New(ts.URL, 100)
	got, err := cl.Analyze(context.Background(), "Quarto sujo", "sk-test")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Sentiment != "2" || got.Keyword != "Limpeza" || got.Problem != "Quarto sujo" {
		t.Fatalf("unexpected classification: %+v", got)
	}
}

func TestAnalyze_LabelSentiment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sentiment":"negative","keyword":"Limpeza","sector":"Governança","problem":"Quarto sujo"}`))
	}))
	defer ts.Close()

	cl, _ := analyzer.New(ts.URL, 100)
	got, err := cl.Analyze(context.Background(), "Quarto sujo", "sk-test")
	if err != nil || got.Sentiment != "negative" {
		t.Fatalf("unexpected result: %+v err=%v", got, err)
	}
}

func TestAnalyze_LimiterPastDeadlineIsNotAttempted(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"keyword":"Limpeza","sector":"Governança","problem":"Quarto sujo"}`))
	}))
	defer ts.Close()

	cl, _ := analyzer.New(ts.URL, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := cl.Analyze(ctx, "Quarto sujo", "sk-test"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := cl.Analyze(ctx, "Quarto sujo", "sk-test")
	if !errors.Is(err, domain.ErrNotAttempted) {
		t.Fatalf("want ErrNotAttempted, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Fatalf("server hit %d times, want 1", n)
	}
}
