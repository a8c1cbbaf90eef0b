package summary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func newTestSummarizer(t *testing.T, handler http.HandlerFunc) (*Summarizer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return NewSummarizer(openai.NewClientWithConfig(cfg), "gpt-4o-mini"), server
}

func TestSummarizeEmptyTranscriptSkipsBackend(t *testing.T) {
	var calls int32
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	})

	got := s.Summarize(context.Background(), nil)

	assert.Equal(t, EmptySummary, got)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSummarizeBackendErrorFallsBack(t *testing.T) {
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	got := s.Summarize(context.Background(), []domain.Turn{{Speaker: "user", Text: "hello"}})

	assert.Equal(t, EmptySummary, got)
}

func TestSummarizeReturnsModelOutput(t *testing.T) {
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Borrower promised to pay by Friday."}}]}`))
	})

	got := s.Summarize(context.Background(), []domain.Turn{
		{Speaker: "agent", Text: "When can you pay?"},
		{Speaker: "user", Text: "Friday"},
	})

	assert.Equal(t, "Borrower promised to pay by Friday.", got)
}

func TestSummarizePairMakesOneCallPerNonEmptySide(t *testing.T) {
	var calls int32
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	whatsapp, call := s.SummarizePair(context.Background(),
		[]domain.Turn{{Speaker: "user", Text: "hi"}}, nil)

	assert.Equal(t, "ok", whatsapp)
	assert.Equal(t, EmptySummary, call)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSummarizePairPausesBetweenCalls(t *testing.T) {
	var calls int32
	s, _ := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})

	start := time.Now()
	s.SummarizePair(context.Background(),
		[]domain.Turn{{Speaker: "user", Text: "hi"}},
		[]domain.Turn{{Speaker: "agent", Text: "hello"}})
	elapsed := time.Since(start)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond, "second summary should wait out the pause")
}
