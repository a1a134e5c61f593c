// aria-stt transcribes an audio file with the daemon's speech stack,
// for checking models and recordings without running the full pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"aria/internal/allowlist"
	"aria/internal/asr"
	"aria/internal/config"
	"aria/pkg/audioconv"
)

func main() {
	configFile := cli.StringP("config", "c", "config.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	backend := cli.StringP("backend", "b", "", "Override the configured ASR backend")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	level := log.LevelWarn
	switch *logLevel {
	case "debug":
		level = log.LevelDebug
	case "info":
		level = log.LevelInfo
	case "error":
		level = log.LevelError
	}
	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))

	if cli.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: aria-stt [flags] <audio-file>")
		os.Exit(2)
	}

	godotenv.Load(*envFile)
	cfg := config.Load(*configFile)
	if *backend != "" {
		cfg.ASR.Backend = *backend
	}

	pcm, err := audioconv.DecodeFilePCM16(cli.Arg(0))
	if err != nil {
		log.Error("Failed to decode audio", "path", cli.Arg(0), "err", err)
		os.Exit(1)
	}

	files := allowlist.NewFileList(cfg.Allowlist.FileConfig)
	transcriber, err := asr.New(asr.Config{
		Backend:          cfg.ASR.Backend,
		WhisperModelPath: cfg.ASR.Whisper.ModelPath,
		WhisperLanguage:  cfg.ASR.Whisper.Language,
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      cfg.ASR.OpenAI.Model,
		OpenAIBaseURL:    cfg.ASR.OpenAI.BaseURL,
	}, files)
	if err != nil {
		log.Error("Failed to init ASR", "err", err)
		os.Exit(1)
	}
	defer transcriber.Close()

	text := transcriber.Transcribe(pcm)
	if text == "" {
		log.Error("No transcription produced")
		os.Exit(1)
	}
	fmt.Println(text)
}
