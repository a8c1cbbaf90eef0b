package knowledge

import (
	"context"
	"strings"

	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"go.uber.org/zap"
)

// NoAnswerText is the localized fallback returned when retrieval finds
// nothing usable.
const NoAnswerText = "मुझे वह जानकारी नहीं मिल सकी। कृपया अपनी लोन नीतियाँ जाँचें।"

const (
	topK           = 3
	maxAnswerChars = 200
)

// cannedRule maps a topic to a hand-authored answer: fires when any query
// trigger matches the question and the context trigger appears in the
// retrieved text. Evaluated in order, after retrieval, before truncation.
type cannedRule struct {
	queryTriggers  []string
	contextTrigger string
	answer         string
}

var cannedRules = []cannedRule{
	{
		queryTriggers:  []string{"default", "नहीं"},
		contextTrigger: "recovery of dues",
		answer:         "अगर आप भुगतान नहीं करते, तो बैंक डिफॉल्ट में देय राशि की वसूली के लिए कदम उठाएगा।",
	},
	{
		queryTriggers:  []string{"early", "जल्दी"},
		contextTrigger: "Loan closures",
		answer:         "लोन जल्दी बंद करने पर यह वेवर डेलिगेशन मैट्रिक्स के अनुसार होगा।",
	},
}

// Retriever answers natural-language policy questions from the indexed
// corpus. It is a best-effort advisory subsystem: every failure path
// degrades to a canned answer, never an error.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
}

func NewRetriever(embedder Embedder, index VectorIndex) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// AnswerPolicyQuestion returns a short best-effort answer for query.
func (r *Retriever) AnswerPolicyQuestion(ctx context.Context, query string) string {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.Base().Warn("policy query embedding failed", zap.Error(err))
		return NoAnswerText
	}

	chunks, err := r.index.Query(ctx, vector, topK)
	if err != nil {
		logger.Base().Warn("policy query retrieval failed", zap.Error(err))
		return NoAnswerText
	}
	if len(chunks) == 0 {
		return NoAnswerText
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}
	context := strings.Join(texts, " ")

	if answer, ok := matchCannedRule(query, context); ok {
		return answer
	}

	// Rune-wise so Devanagari text is never cut mid-character.
	if runes := []rune(context); len(runes) > maxAnswerChars {
		return string(runes[:maxAnswerChars]) + "..."
	}
	return context
}

func matchCannedRule(query, retrieved string) (string, bool) {
	lowered := strings.ToLower(query)
	for _, rule := range cannedRules {
		for _, trigger := range rule.queryTriggers {
			if strings.Contains(lowered, strings.ToLower(trigger)) || strings.Contains(query, trigger) {
				if strings.Contains(retrieved, rule.contextTrigger) {
					return rule.answer, true
				}
				break
			}
		}
	}
	return "", false
}
