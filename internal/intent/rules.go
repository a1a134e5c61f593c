package intent

import (
	"fmt"
	"regexp"
	"strings"

	"aria/internal/allowlist"
)

// Ordered pattern sets for the two open intents. Web patterns run
// first so "打开xx网站" is not swallowed by the generic file patterns.
var (
	webPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:打开(?:网页|网站|网址)|访问|进入)\s*(?P<target>.+)`),
		regexp.MustCompile(`(?P<target>.+?)\s*(?:网站|网页|官网)$`),
	}
	filePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:打开|开启|帮我打开)\s*(?P<target>.+)`),
		regexp.MustCompile(`(?P<target>.+?)\s*(?:打开一下|打开)`),
	}
)

// parseRules is tier 1: deterministic matching with allow-list
// normalization. Returns ok=false when nothing matched, handing the
// utterance to tier 2.
func (r *Resolver) parseRules(text string) (Result, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, false
	}

	if target, ok := matchTarget(webPatterns, text, r.web); ok {
		return Result{
			Actions: []Action{{Intent: OpenWeb, Target: target}},
			Reply:   fmt.Sprintf("好的，正在为您打开%s", target),
		}, true
	}

	if target, ok := matchTarget(filePatterns, text, r.files); ok {
		return Result{
			Actions: []Action{{Intent: OpenFile, Target: target}},
			Reply:   fmt.Sprintf("好的，正在为您打开%s", target),
		}, true
	}

	return Result{}, false
}

func matchTarget(patterns []*regexp.Regexp, text string, list *allowlist.List) (string, bool) {
	for _, pat := range patterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[pat.SubexpIndex("target")])
		if raw == "" {
			continue
		}
		if norm, ok := list.Normalize(raw); ok {
			return norm, true
		}
	}
	return "", false
}
