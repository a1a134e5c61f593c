// Package dispatch executes normalized actions against the operating
// system. Targets are looked up against the allow-lists again here:
// the resolver already normalized them, but the dispatcher is the last
// gate before anything is opened.
package dispatch

import (
	"fmt"
	"strings"

	log "log/slog"

	"aria/internal/allowlist"
	"aria/internal/intent"
)

// Result is the outcome of one action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Opener performs the actual OS calls. Swapped out in tests.
type Opener interface {
	OpenFile(path string) Result
	OpenWeb(url string) Result
}

type Dispatcher struct {
	files  *allowlist.List
	web    *allowlist.List
	opener Opener
}

func New(files, web *allowlist.List) *Dispatcher {
	return &Dispatcher{files: files, web: web, opener: systemOpener{}}
}

func NewWithOpener(files, web *allowlist.List, o Opener) *Dispatcher {
	return &Dispatcher{files: files, web: web, opener: o}
}

// ExecuteAll runs the actions in list order and folds the per-action
// results into one aggregate: overall success is the AND of all
// results, messages are joined in order.
func (d *Dispatcher) ExecuteAll(res intent.Result) Result {
	agg := Result{Success: true}
	var msgs []string

	for _, a := range res.Actions {
		r := d.Execute(a, res.Reply)
		agg.Success = agg.Success && r.Success
		if r.Message != "" {
			msgs = append(msgs, r.Message)
		}
	}

	agg.Message = strings.Join(msgs, " ")
	return agg
}

// Execute runs one action. For chat/unknown it is a pass-through with
// the reply as the message.
func (d *Dispatcher) Execute(a intent.Action, reply string) Result {
	switch a.Intent {
	case intent.Chat, intent.Unknown:
		return Result{Success: true, Message: reply}

	case intent.OpenFile:
		path, ok := d.files.Resolve(a.Target)
		if !ok {
			log.Warn("Target not allowed", "intent", a.Intent, "target", a.Target)
			return Result{Message: fmt.Sprintf("操作失败: %s 不在允许列表中", a.Target)}
		}
		r := d.opener.OpenFile(path)
		return d.finish(a, r)

	case intent.OpenWeb:
		url, ok := d.web.Resolve(a.Target)
		if !ok {
			log.Warn("Target not allowed", "intent", a.Intent, "target", a.Target)
			return Result{Message: fmt.Sprintf("操作失败: %s 不在允许列表中", a.Target)}
		}
		r := d.opener.OpenWeb(url)
		return d.finish(a, r)
	}

	return Result{Message: fmt.Sprintf("操作失败: 未知意图 %s", a.Intent)}
}

func (d *Dispatcher) finish(a intent.Action, r Result) Result {
	if !r.Success {
		log.Error("Action failed", "intent", a.Intent, "target", a.Target, "msg", r.Message)
		return Result{Message: fmt.Sprintf("操作失败: %s %s", a.Target, r.Message)}
	}
	log.Info("Action done", "intent", a.Intent, "target", a.Target)
	return Result{Success: true, Message: fmt.Sprintf("已为您打开%s", a.Target)}
}
