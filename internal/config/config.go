// Package config loads the daemon settings from config.yaml.
//
// Every field has a default and any malformed section falls back to it:
// a broken config file degrades the assistant, it never stops it.
package config

import (
	"os"

	log "log/slog"

	"gopkg.in/yaml.v3"
)

type Audio struct {
	SampleRate int     `yaml:"sample_rate"`
	ChunkSize  int     `yaml:"chunk_size"`
	PreRollSec float64 `yaml:"pre_roll_sec"`
}

type VAD struct {
	SilenceThreshold     float64 `yaml:"silence_threshold"`
	SilenceLimitSec      float64 `yaml:"silence_limit_sec"`
	WakeupSilenceLimit   float64 `yaml:"wakeup_silence_limit_sec"`
	WakeupSilenceRampSec float64 `yaml:"wakeup_silence_ramp_sec"`
	MaxRecordingSec      float64 `yaml:"max_recording_sec"`
}

type KWS struct {
	ModelPath    string   `yaml:"model_path"`
	KeywordsPath string   `yaml:"keywords_path"`
	Keywords     []string `yaml:"keywords"`
	CooldownSec  float64  `yaml:"cooldown_sec"`
	WindowSec    float64  `yaml:"window_sec"`
}

type ASR struct {
	Backend string     `yaml:"backend"`
	Whisper ASRWhisper `yaml:"whisper"`
	OpenAI  ASROpenAI  `yaml:"openai"`
}

type ASRWhisper struct {
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type ASROpenAI struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type Intent struct {
	Disabled bool    `yaml:"disabled"`
	BaseURL  string  `yaml:"base_url"`
	Model    string  `yaml:"model"`
	Timeout  float64 `yaml:"timeout_sec"`
}

type Allowlist struct {
	FileConfig string `yaml:"file_config"`
	WebConfig  string `yaml:"web_config"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Notify struct {
	CuePath string `yaml:"cue_path"`
}

type Config struct {
	Audio     Audio     `yaml:"audio"`
	VAD       VAD       `yaml:"vad"`
	KWS       KWS       `yaml:"kws"`
	ASR       ASR       `yaml:"asr"`
	Intent    Intent    `yaml:"intent"`
	Allowlist Allowlist `yaml:"allowlist"`
	Server    Server    `yaml:"server"`
	Notify    Notify    `yaml:"notify"`
}

func Default() *Config {
	return &Config{
		Audio: Audio{
			SampleRate: 16000,
			ChunkSize:  512,
			PreRollSec: 1.0,
		},
		VAD: VAD{
			SilenceThreshold:     500,
			SilenceLimitSec:      1.5,
			WakeupSilenceLimit:   2.5,
			WakeupSilenceRampSec: 1.0,
			MaxRecordingSec:      10.0,
		},
		KWS: KWS{
			ModelPath:    "models/ggml-tiny.bin",
			KeywordsPath: "models/keywords.txt",
			Keywords:     []string{"小安小安", "hey aria"},
			CooldownSec:  2.0,
			WindowSec:    2.0,
		},
		ASR: ASR{
			Backend: "whisper",
			Whisper: ASRWhisper{
				ModelPath: "models/ggml-base.bin",
				Language:  "auto",
			},
			OpenAI: ASROpenAI{
				Model: "whisper-1",
			},
		},
		Intent: Intent{
			BaseURL: "https://api.deepseek.com/v1",
			Model:   "deepseek-chat",
			Timeout: 10,
		},
		Allowlist: Allowlist{
			FileConfig: "mcp_config/file_config.yaml",
			WebConfig:  "mcp_config/web_config.yaml",
		},
		Server: Server{
			Addr: "127.0.0.1:8090",
		},
		Notify: Notify{
			CuePath: "",
		},
	}
}

// Load reads path and overlays it onto the defaults. A missing or
// unparseable file returns the defaults unchanged.
func Load(path string) *Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("Failed to read config, using defaults", "path", path, "err", err)
		}
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Warn("Failed to parse config, using defaults", "path", path, "err", err)
		return Default()
	}

	cfg.sanitize()
	return cfg
}

func (c *Config) sanitize() {
	def := Default()

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.ChunkSize <= 0 {
		c.Audio.ChunkSize = def.Audio.ChunkSize
	}
	if c.Audio.PreRollSec <= 0 {
		c.Audio.PreRollSec = def.Audio.PreRollSec
	}
	if c.VAD.SilenceThreshold <= 0 {
		c.VAD.SilenceThreshold = def.VAD.SilenceThreshold
	}
	if c.VAD.SilenceLimitSec <= 0 {
		c.VAD.SilenceLimitSec = def.VAD.SilenceLimitSec
	}
	if c.VAD.WakeupSilenceLimit <= 0 {
		c.VAD.WakeupSilenceLimit = def.VAD.WakeupSilenceLimit
	}
	if c.VAD.WakeupSilenceRampSec < 0 {
		c.VAD.WakeupSilenceRampSec = def.VAD.WakeupSilenceRampSec
	}
	if c.VAD.MaxRecordingSec <= 0 {
		c.VAD.MaxRecordingSec = def.VAD.MaxRecordingSec
	}
	if c.KWS.CooldownSec < 0 {
		c.KWS.CooldownSec = def.KWS.CooldownSec
	}
	if c.KWS.WindowSec <= 0 {
		c.KWS.WindowSec = def.KWS.WindowSec
	}
	if c.ASR.Backend == "" {
		c.ASR.Backend = def.ASR.Backend
	}
	if c.Intent.Timeout <= 0 {
		c.Intent.Timeout = def.Intent.Timeout
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Allowlist.FileConfig == "" {
		c.Allowlist.FileConfig = def.Allowlist.FileConfig
	}
	if c.Allowlist.WebConfig == "" {
		c.Allowlist.WebConfig = def.Allowlist.WebConfig
	}
}
