package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"aria/internal/allowlist"
	"aria/internal/asr"
	"aria/internal/audio"
	"aria/internal/config"
	"aria/internal/dispatch"
	"aria/internal/intent"
	"aria/internal/ipc"
	"aria/internal/notify"
	"aria/internal/pipeline"
	"aria/internal/proxy"
	"aria/internal/record"
	"aria/internal/server"
	"aria/internal/wake"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configFile := cli.StringP("config", "c", "config.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for the model API")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)
	cfg := config.Load(*configFile)

	files := allowlist.NewFileList(cfg.Allowlist.FileConfig)
	web := allowlist.NewWebList(cfg.Allowlist.WebConfig)
	if err := files.Ensure(); err != nil {
		log.Warn("Failed to seed file allow-list", "path", files.Path(), "err", err)
	}
	if err := web.Ensure(); err != nil {
		log.Warn("Failed to seed web allow-list", "path", web.Path(), "err", err)
	}

	log.Debug("Loaded allow-lists")

	engine, err := wake.NewWhisperEngine(cfg.KWS.ModelPath, cfg.Audio.SampleRate, cfg.KWS.WindowSec)
	if err != nil {
		// Degraded but alive: the daemon still serves HTTP commands.
		log.Warn("Wake engine unavailable", "err", err)
		engine = nil
	}
	spotter := wake.NewSpotter(engine, wake.Config{
		Keywords:     cfg.KWS.Keywords,
		KeywordsPath: cfg.KWS.KeywordsPath,
		Cooldown:     secs(cfg.KWS.CooldownSec),
	}, files)
	defer spotter.Close()

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

	log.Debug("Loaded ASR")

	intentCfg := intent.Config{
		APIKey:   os.Getenv("DEEPSEEK_API_KEY"),
		BaseURL:  cfg.Intent.BaseURL,
		Model:    cfg.Intent.Model,
		Timeout:  secs(cfg.Intent.Timeout),
		Disabled: cfg.Intent.Disabled,
	}
	if *proxyAddr != "" {
		httpClient, err := proxy.NewSocksClient(*proxyAddr)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
			os.Exit(1)
		}
		intentCfg.HTTPClient = httpClient
		log.Debug("Loaded proxy")
	}
	resolver := intent.NewResolver(intentCfg, files, web)

	cue := notify.NewCue(cfg.Notify.CuePath)

	rec := record.New(cfg.Audio.SampleRate, cfg.Audio.ChunkSize)
	rec.SilenceThreshold = cfg.VAD.SilenceThreshold
	rec.SilenceLimitSec = cfg.VAD.SilenceLimitSec
	rec.WakeupLimitSec = cfg.VAD.WakeupSilenceLimit
	rec.WakeupRampSec = cfg.VAD.WakeupSilenceRampSec
	rec.MaxRecordingSec = cfg.VAD.MaxRecordingSec

	source := audio.NewSource(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, cfg.Audio.PreRollSec)

	var srv *server.Server
	pipe := pipeline.New(pipeline.Deps{
		Source:      source,
		Spotter:     spotter,
		Recorder:    rec,
		Transcriber: transcriber,
		Resolver:    resolver,
		Dispatcher:  dispatch.New(files, web),
		Sink:        func(e pipeline.Event) { srv.Publish(e) },
		WakeCue: func() {
			if err := cue.Play(); err != nil {
				log.Warn("Failed to play wake cue", "err", err)
			}
		},
	})

	reload := func() error {
		files.Invalidate()
		web.Invalidate()
		transcriber.InvalidateHotwords()
		log.Info("Allow-lists reloaded")
		return nil
	}

	srv = server.New(server.Config{Addr: cfg.Server.Addr, Reload: reload}, pipe)
	if err := srv.Start(); err != nil {
		log.Error("Failed to start control server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "pause":
			pipe.Pause()
		case "resume":
			pipe.Resume()
		case "reload":
			reload()
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful")

	pipe.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("Shutting down", "signal", s.String())
		pipe.Stop()
	case <-pipe.Done():
		// The loop only exits on its own after a fatal audio failure.
		log.Error("Pipeline exited")
		os.Exit(1)
	}
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
