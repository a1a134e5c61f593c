// Package intent turns a transcript into zero or more normalized
// actions plus a spoken reply. Deterministic pattern rules run first;
// a remote chat-completion model is the fallback. Both tiers constrain
// open targets to the operator allow-lists.
package intent

import (
	"net/http"
	"time"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aria/internal/allowlist"
)

type Kind string

const (
	OpenFile Kind = "open_file"
	OpenWeb  Kind = "open_web"
	Chat     Kind = "chat"
	Unknown  Kind = "unknown"
)

func validKind(k Kind) bool {
	switch k {
	case OpenFile, OpenWeb, Chat, Unknown:
		return true
	}
	return false
}

// Action is one normalized command. Target is an allow-list keyword
// for open_file/open_web and empty otherwise.
type Action struct {
	Intent Kind   `json:"intent"`
	Target string `json:"target"`
}

// Result always carries at least one action and a reply string.
type Result struct {
	Actions []Action `json:"actions"`
	Reply   string   `json:"reply"`
}

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Disabled bool
	// HTTPClient overrides the transport, e.g. for a SOCKS proxy.
	HTTPClient *http.Client
}

type Resolver struct {
	files    *allowlist.List
	web      *allowlist.List
	client   openai.Client
	model    string
	timeout  time.Duration
	disabled bool
	hasKey   bool
}

func NewResolver(cfg Config, files, web *allowlist.List) *Resolver {
	r := &Resolver{
		files:    files,
		web:      web,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		disabled: cfg.Disabled,
		hasKey:   cfg.APIKey != "",
	}
	if r.timeout <= 0 {
		r.timeout = 10 * time.Second
	}

	if r.hasKey {
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
		}
		r.client = openai.NewClient(opts...)
	}

	return r
}

// Parse resolves text into a Result. Never returns an empty action
// list: an utterance nobody understood yields a single unknown or chat
// action with an explanatory reply.
func (r *Resolver) Parse(text string) Result {
	if res, ok := r.parseRules(text); ok {
		log.Info("Intent matched by rules", "actions", len(res.Actions))
		return res
	}

	if r.disabled {
		return Result{
			Actions: []Action{{Intent: Unknown, Target: ""}},
			Reply:   "提示：大模型不可用，已使用离线规则解析。",
		}
	}

	if !r.hasKey {
		log.Warn("No API key configured, skipping model resolution")
		return Result{
			Actions: []Action{{Intent: Chat, Target: ""}},
			Reply:   "抱歉，我还没配置好大模型，现在只能听懂一些简单的指令。",
		}
	}

	res, err := r.parseModel(text)
	if err != nil {
		log.Error("Model resolution failed", "err", err)
		return Result{
			Actions: []Action{{Intent: Chat, Target: ""}},
			Reply:   "抱歉，我现在有点走神，没听清你在说什么。",
		}
	}
	return res
}
