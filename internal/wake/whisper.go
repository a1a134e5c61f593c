package wake

import (
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperEngine spots trigger phrases by decoding a sliding window of
// recent audio with a small whisper model. Not a purpose-built KWS
// model, but the same capability contract: feed chunks, get a keyword.
type WhisperEngine struct {
	model   whisper.Model
	rate    int
	window  int // samples per decode window
	buf     []int16
	phrases []string
}

// NewWhisperEngine loads the model at modelPath. The caller treats a
// nil engine as "component disabled", so a missing model returns an
// error rather than a half-built engine.
func NewWhisperEngine(modelPath string, sampleRate int, windowSec float64) (*WhisperEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("empty wake model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load wake model: %w", err)
	}
	if windowSec <= 0 {
		windowSec = 2.0
	}
	return &WhisperEngine{
		model:  m,
		rate:   sampleRate,
		window: int(float64(sampleRate) * windowSec),
	}, nil
}

func (e *WhisperEngine) SetKeywords(phrases []string) {
	e.phrases = nil
	for _, p := range phrases {
		if n := normalizePhrase(p); n != "" {
			e.phrases = append(e.phrases, p)
		}
	}
}

func (e *WhisperEngine) Accept(chunk []int16) (string, error) {
	e.buf = append(e.buf, chunk...)
	if len(e.buf) < e.window {
		return "", nil
	}

	text, err := e.decode(e.buf)
	if err != nil {
		e.Reset()
		return "", err
	}

	// Slide: keep the back half so a phrase split across windows is
	// still seen whole next time.
	half := e.window / 2
	e.buf = append(e.buf[:0], e.buf[len(e.buf)-half:]...)

	got := normalizePhrase(text)
	for _, p := range e.phrases {
		if strings.Contains(got, normalizePhrase(p)) {
			return p, nil
		}
	}
	return "", nil
}

func (e *WhisperEngine) Reset() {
	e.buf = e.buf[:0]
}

func (e *WhisperEngine) Close() error {
	if e.model == nil {
		return nil
	}
	return e.model.Close()
}

func (e *WhisperEngine) decode(pcm []int16) (string, error) {
	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}
	if err := wctx.SetLanguage("auto"); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(1)

	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var sb strings.Builder
	for {
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		sb.WriteString(s.Text)
	}
	return sb.String(), nil
}

// normalizePhrase strips spaces and punctuation and lowercases, so
// decoder quirks ("小安, 小安!") still match the configured phrase.
func normalizePhrase(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r == ' ' || r == '\t':
		case strings.ContainsRune(",.!?，。！？、", r):
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
