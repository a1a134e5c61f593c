// Package asr converts a captured utterance into text through a
// swappable backend, biased by a hotword vocabulary harvested from the
// file-open allow-list.
package asr

import (
	"context"
	"fmt"
	"time"

	log "log/slog"

	"aria/internal/allowlist"
)

// Backend is one speech-to-text engine.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, pcm []int16, hotwords string) (string, error)
	Close() error
}

const defaultBackend = "whisper"

type Config struct {
	Backend string

	WhisperModelPath string
	WhisperLanguage  string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

type Transcriber struct {
	backend  Backend
	hotwords *HotwordCache
	timeout  time.Duration
}

// New selects the configured backend. Construction failure of a
// non-default backend falls back to the default exactly once; if the
// default itself fails the pipeline cannot start.
func New(cfg Config, files *allowlist.List) (*Transcriber, error) {
	name := cfg.Backend
	if name == "" {
		name = defaultBackend
	}

	backend, err := build(name, cfg)
	if err != nil && name != defaultBackend {
		log.Error("ASR backend init failed, falling back to default", "backend", name, "err", err)
		backend, err = build(defaultBackend, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("init asr backend: %w", err)
	}

	log.Info("ASR backend ready", "backend", backend.Name())

	return &Transcriber{
		backend:  backend,
		hotwords: NewHotwordCache(files),
		timeout:  60 * time.Second,
	}, nil
}

func build(name string, cfg Config) (Backend, error) {
	switch name {
	case "whisper":
		return NewWhisperBackend(cfg.WhisperModelPath, cfg.WhisperLanguage)
	case "openai":
		return NewOpenAIBackend(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown asr backend %q", name)
	}
}

// Transcribe returns the recognized text, or the empty string on any
// backend failure. The pipeline treats empty as "nothing understood",
// never as an error.
func (t *Transcriber) Transcribe(pcm []int16) string {
	if len(pcm) == 0 {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	text, err := t.backend.Transcribe(ctx, pcm, t.hotwords.Text())
	if err != nil {
		log.Error("Transcription failed", "backend", t.backend.Name(), "err", err)
		return ""
	}

	log.Info("Transcribed", "text", text)
	return text
}

// InvalidateHotwords forces a vocabulary rebuild on the next request,
// used when the allow-lists are reloaded out of band.
func (t *Transcriber) InvalidateHotwords() {
	t.hotwords.Invalidate()
}

func (t *Transcriber) Close() error {
	return t.backend.Close()
}

func pcmToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}
