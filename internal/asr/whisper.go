package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperBackend runs whisper.cpp locally. This is the default engine:
// it needs no network and no credentials, only a ggml model file.
type WhisperBackend struct {
	model    whisper.Model
	language string
}

func NewWhisperBackend(modelPath, language string) (*WhisperBackend, error) {
	if modelPath == "" {
		return nil, errors.New("empty whisper model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	if language == "" {
		language = "auto"
	}
	return &WhisperBackend{model: m, language: language}, nil
}

func (b *WhisperBackend) Name() string { return "whisper" }

func (b *WhisperBackend) Close() error {
	if b.model == nil {
		return nil
	}
	return b.model.Close()
}

func (b *WhisperBackend) Transcribe(ctx context.Context, pcm []int16, hotwords string) (string, error) {
	if b.model == nil {
		return "", errors.New("nil whisper model")
	}
	if len(pcm) == 0 {
		return "", errors.New("no audio samples")
	}

	wctx, err := b.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new whisper context: %w", err)
	}

	if err := wctx.SetLanguage(b.language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(uint(runtime.NumCPU()))
	if hotwords != "" {
		// Whisper biases decoding toward the initial prompt, which is
		// how the boost vocabulary reaches the model.
		wctx.SetInitialPrompt(hotwords)
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	return strings.TrimSpace(strings.Join(parts, " ")), nil
}
