package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIBackend ships the utterance to the hosted transcription API.
// Non-default: selected by config, and its init failure falls back to
// the local whisper backend.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model, baseURL string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	if model == "" {
		model = "whisper-1"
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Close() error { return nil }

func (b *OpenAIBackend) Transcribe(ctx context.Context, pcm []int16, hotwords string) (string, error) {
	wav := pcmToWAV(pcm, 16000)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(b.model),
	}
	if hotwords != "" {
		params.Prompt = openai.String(hotwords)
	}

	resp, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// pcmToWAV wraps raw mono 16-bit samples in a minimal RIFF header.
func pcmToWAV(pcm []int16, sampleRate int) []byte {
	dataSize := len(pcm) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}
