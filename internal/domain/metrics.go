package domain

import "time"

// MetricKind names one of the four per-turn telemetry buckets.
type MetricKind string

const (
	MetricLLM MetricKind = "LLM_METRICS"
	MetricSTT MetricKind = "STT_METRICS"
	MetricTTS MetricKind = "TTS_METRICS"
	MetricEOU MetricKind = "EOU_METRICS"
)

// LLMMetric captures one language-model generation.
type LLMMetric struct {
	Timestamp        time.Time     `json:"timestamp"`
	Duration         time.Duration `json:"duration"`
	TTFT             time.Duration `json:"ttft"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TokensPerSecond  float64       `json:"tokens_per_second"`
}

// STTMetric captures one transcribed borrower utterance.
type STTMetric struct {
	Timestamp     time.Time     `json:"timestamp"`
	Duration      time.Duration `json:"duration"`
	AudioDuration time.Duration `json:"audio_duration"`
}

// TTSMetric captures one synthesized agent utterance.
type TTSMetric struct {
	Timestamp     time.Time     `json:"timestamp"`
	TTFB          time.Duration `json:"ttfb"`
	Duration      time.Duration `json:"duration"`
	AudioDuration time.Duration `json:"audio_duration"`
	Characters    int           `json:"characters_count"`
}

// EOUMetric captures end-of-utterance detection timing.
type EOUMetric struct {
	Timestamp           time.Time     `json:"timestamp"`
	EndOfUtteranceDelay time.Duration `json:"end_of_utterance_delay"`
	TranscriptionDelay  time.Duration `json:"transcription_delay"`
}

// MetricsBundle is the immutable snapshot of a session's four metric
// sequences, taken once at session end and serialized for upload.
type MetricsBundle struct {
	LLM []LLMMetric `json:"LLM_METRICS"`
	STT []STTMetric `json:"STT_METRICS"`
	TTS []TTSMetric `json:"TTS_METRICS"`
	EOU []EOUMetric `json:"EOU_METRICS"`
}
