package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
)

const systemPrompt = `你是语音助手的核心解析与对话模块。
请根据用户的话语，判断其意图并生成回复。必须输出JSON格式：
{
  "actions": [
    {
      "intent": "open_file" | "open_web" | "chat" | "unknown",
      "target": "对应列表中的关键词，如果是chat则为空"
    }
  ],
  "reply": "你对用户说的回复语"
}

意图规则：
1. open_file: 用户想打开本地文件/应用。target 必须严格从【文件允许列表】中选择最匹配的一个。
2. open_web: 用户想打开网页。target 必须严格从【网页允许列表】中选择最匹配的一个关键词。
3. chat: 用户在闲聊、提问或不需要操作系统的行为。你需要给出自然、亲切、简短的回复。
4. unknown: 无法理解的意图。
5. actions 列表可以包含多个任务（例如用户说"打开A和B"）。如果是纯闲聊，actions 列表可以只包含一个 chat intent。

回复语规则：
- 如果是打开操作，回复语应简洁，如"好的，正在为您打开[target]"。
- 如果是闲聊，回复语应像朋友一样自然，字数不要太多（适合语音播报）。
不要输出JSON以外的任何文本。`

// parseModel is tier 2: ship the utterance plus both allow-lists to
// the chat-completion endpoint and parse the reply defensively.
func (r *Resolver) parseModel(text string) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var fileList, webList strings.Builder
	for _, kw := range r.files.Keywords() {
		fmt.Fprintf(&fileList, "- %s\n", kw)
	}
	for _, kw := range r.web.Keywords() {
		fmt.Fprintf(&webList, "- %s\n", kw)
	}

	user := fmt.Sprintf("文件允许列表：\n%s\n网页允许列表：\n%s\n用户话语：%s",
		fileList.String(), webList.String(), text)

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
		Model: openai.ChatModel(r.model),
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Result{}, fmt.Errorf("empty message content")
	}

	parsed, err := extractResult(content)
	if err != nil {
		return Result{}, fmt.Errorf("parse model output: %w", err)
	}

	return r.constrain(parsed), nil
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?")
	fenceClose = regexp.MustCompile("```$")
)

// extractResult parses the model's JSON payload. Code-fence wrapping
// is tolerated; anything that is not an object with known intents is
// rejected.
func extractResult(content string) (Result, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(fenceOpen.ReplaceAllString(text, ""))
		text = strings.TrimSpace(fenceClose.ReplaceAllString(text, ""))
	}

	var raw struct {
		Actions []Action `json:"actions"`
		Intent  *Kind    `json:"intent"`
		Target  *string  `json:"target"`
		Reply   string   `json:"reply"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Result{}, fmt.Errorf("unmarshal: %w", err)
	}

	actions := raw.Actions
	// Legacy single-action shape.
	if len(actions) == 0 && raw.Intent != nil && raw.Target != nil {
		actions = []Action{{Intent: *raw.Intent, Target: *raw.Target}}
	}

	var valid []Action
	for _, a := range actions {
		if validKind(a.Intent) {
			valid = append(valid, a)
		}
	}

	if len(valid) == 0 && raw.Reply == "" {
		return Result{}, fmt.Errorf("no usable actions or reply")
	}

	return Result{Actions: valid, Reply: raw.Reply}, nil
}

// constrain re-normalizes every open target against the allow-lists,
// exactly as tier 1 does. An action that fails normalization is
// dropped, not trusted.
func (r *Resolver) constrain(res Result) Result {
	var actions []Action
	for _, a := range res.Actions {
		switch a.Intent {
		case OpenFile:
			if norm, ok := r.files.Normalize(a.Target); ok {
				actions = append(actions, Action{Intent: OpenFile, Target: norm})
			} else {
				log.Warn("Dropped action, target not in allowlist", "intent", a.Intent, "target", a.Target)
			}
		case OpenWeb:
			if norm, ok := r.web.Normalize(a.Target); ok {
				actions = append(actions, Action{Intent: OpenWeb, Target: norm})
			} else {
				log.Warn("Dropped action, target not in allowlist", "intent", a.Intent, "target", a.Target)
			}
		default:
			actions = append(actions, Action{Intent: a.Intent, Target: ""})
		}
	}

	if len(actions) == 0 {
		actions = []Action{{Intent: Chat, Target: ""}}
	}

	return Result{Actions: actions, Reply: res.Reply}
}
