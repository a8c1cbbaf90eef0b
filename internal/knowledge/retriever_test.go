package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	chunks []Chunk
	err    error
}

func (f *fakeIndex) Upsert(_ context.Context, _ []Chunk, _ [][]float32) error {
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, _ int) ([]Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func TestAnswerPolicyQuestionNoMatches(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{})

	got := r.AnswerPolicyQuestion(context.Background(), "query with no matching chunks")
	assert.Equal(t, NoAnswerText, got)
	assert.NotEmpty(t, got)
}

func TestAnswerPolicyQuestionEmbeddingFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeIndex{})

	got := r.AnswerPolicyQuestion(context.Background(), "what happens on default?")
	assert.Equal(t, NoAnswerText, got)
}

func TestAnswerPolicyQuestionRetrievalFailure(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{err: errors.New("connection refused")})

	got := r.AnswerPolicyQuestion(context.Background(), "late fee policy")
	assert.Equal(t, NoAnswerText, got)
}

func TestAnswerPolicyQuestionDefaultRule(t *testing.T) {
	index := &fakeIndex{chunks: []Chunk{
		{Text: "The bank will initiate recovery of dues as per the delegation matrix."},
	}}
	r := NewRetriever(&fakeEmbedder{}, index)

	got := r.AnswerPolicyQuestion(context.Background(), "What if I default on my loan?")
	assert.Equal(t, cannedRules[0].answer, got)

	got = r.AnswerPolicyQuestion(context.Background(), "अगर मैं भुगतान नहीं करूं तो क्या होगा?")
	assert.Equal(t, cannedRules[0].answer, got)
}

func TestAnswerPolicyQuestionEarlyClosureRule(t *testing.T) {
	index := &fakeIndex{chunks: []Chunk{
		{Text: "Loan closures before tenure completion attract a waiver review."},
	}}
	r := NewRetriever(&fakeEmbedder{}, index)

	got := r.AnswerPolicyQuestion(context.Background(), "Can I close my loan early?")
	assert.Equal(t, cannedRules[1].answer, got)
}

func TestAnswerPolicyQuestionRuleNeedsContextMatch(t *testing.T) {
	// Query trigger fires but retrieved text lacks the context trigger.
	index := &fakeIndex{chunks: []Chunk{
		{Text: "General information about interest rates."},
	}}
	r := NewRetriever(&fakeEmbedder{}, index)

	got := r.AnswerPolicyQuestion(context.Background(), "What if I default?")
	assert.Equal(t, "General information about interest rates.", got)
}

func TestAnswerPolicyQuestionTruncatesLongContext(t *testing.T) {
	index := &fakeIndex{chunks: []Chunk{
		{Text: strings.Repeat("नीति ", 100)},
	}}
	r := NewRetriever(&fakeEmbedder{}, index)

	got := r.AnswerPolicyQuestion(context.Background(), "processing fee details")
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), maxAnswerChars+3)
}
