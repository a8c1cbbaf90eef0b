// Package telemetry accumulates per-turn call metrics and flushes them to
// local disk and blob storage at session end.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/domain"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	uploadAttempts       = 3
	uploadInitialBackoff = time.Second
)

// Uploader is the blob-storage surface the flusher needs. pkg/gcs satisfies it.
type Uploader interface {
	UploadBytes(ctx context.Context, objectPath string, payload []byte) (string, error)
}

// Recorder collects one session's metric sequences. Appends preserve emission
// order within each bucket; emitters may call from backend callbacks, so
// appends are mutex-guarded.
type Recorder struct {
	mu     sync.Mutex
	bundle domain.MetricsBundle
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RecordLLM(m domain.LLMMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundle.LLM = append(r.bundle.LLM, m)
}

func (r *Recorder) RecordSTT(m domain.STTMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundle.STT = append(r.bundle.STT, m)
}

func (r *Recorder) RecordTTS(m domain.TTSMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundle.TTS = append(r.bundle.TTS, m)
}

func (r *Recorder) RecordEOU(m domain.EOUMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundle.EOU = append(r.bundle.EOU, m)
}

// Snapshot copies the accumulated sequences. Taken once, at session end.
func (r *Recorder) Snapshot() domain.MetricsBundle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := domain.MetricsBundle{
		LLM: make([]domain.LLMMetric, len(r.bundle.LLM)),
		STT: make([]domain.STTMetric, len(r.bundle.STT)),
		TTS: make([]domain.TTSMetric, len(r.bundle.TTS)),
		EOU: make([]domain.EOUMetric, len(r.bundle.EOU)),
	}
	copy(out.LLM, r.bundle.LLM)
	copy(out.STT, r.bundle.STT)
	copy(out.TTS, r.bundle.TTS)
	copy(out.EOU, r.bundle.EOU)
	return out
}

// Serialize renders a bundle the way the downstream analysis jobs expect it.
func Serialize(bundle domain.MetricsBundle) ([]byte, error) {
	payload, err := json.MarshalIndent(bundle, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metrics: %w", err)
	}
	return payload, nil
}

// FileName derives the per-call metrics object name from the borrower's phone
// and the flush time, e.g. "9998887770_CallMetrics_3-March-2026T14_05.txt".
func FileName(phone string, t time.Time) string {
	return fmt.Sprintf("%s_CallMetrics_%d-%s-%dT%s.txt",
		phone, t.Day(), t.Month().String(), t.Year(), t.Format("15_04"))
}

// Flusher persists metric payloads locally and mirrors them to blob storage.
type Flusher struct {
	uploader Uploader
	localDir string
	backoff  time.Duration
}

func NewFlusher(uploader Uploader, localDir string) *Flusher {
	return &Flusher{
		uploader: uploader,
		localDir: localDir,
		backoff:  uploadInitialBackoff,
	}
}

// Persist writes the payload under the local metrics directory and returns
// the written path. IO errors surface to the caller; local persistence is not
// retried here.
func (f *Flusher) Persist(payload []byte, name string) (string, error) {
	if err := os.MkdirAll(f.localDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}

	path := filepath.Join(f.localDir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write metrics file: %w", err)
	}

	logger.Base().Info("saved call metrics locally", zap.String("path", path))
	return path, nil
}

// Upload pushes the payload to blob storage with bounded retry. Exhausting
// all attempts returns domain.ErrUploadFailed; the caller logs and moves on,
// the call is still complete.
func (f *Flusher) Upload(ctx context.Context, payload []byte, name string) error {
	backoff := f.backoff
	var lastErr error

	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		url, err := f.uploader.UploadBytes(ctx, name, payload)
		if err == nil {
			logger.Base().Info("uploaded call metrics", zap.String("url", url))
			return nil
		}
		lastErr = err

		if attempt < uploadAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrUploadFailed, ctx.Err())
			}
			backoff *= 2
		}
	}

	logger.Base().Error("metrics upload exhausted retries",
		zap.String("name", name),
		zap.Int("attempts", uploadAttempts),
		zap.Error(lastErr))
	return fmt.Errorf("%w after %d attempts: %v", domain.ErrUploadFailed, uploadAttempts, lastErr)
}
