package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/agentden/agentden/internal/model"
)

// thoughtRule binds one extraction pattern to the kind it yields. The first
// matching rule wins; the capture group is the content.
type thoughtRule struct {
	kind    model.ThoughtKind
	pattern *regexp.Regexp
}

var thoughtRules = []thoughtRule{
	{model.ThoughtThinking, regexp.MustCompile(`(?is)<thinking>\s*(.*?)\s*</thinking>`)},
	{model.ThoughtThinking, regexp.MustCompile(`(?im)^\s*[✻✽∴]?\s*thinking:\s*(.+)$`)},
	{model.ThoughtAction, regexp.MustCompile(`(?im)^\s*[⏺●▶]\s+(.+)$`)},
}

var (
	questionTemplates = []string{"should i", "would you like", "do you want"}

	bracketOption  = regexp.MustCompile(`\[([^\[\]\n]+)\]`)
	numberedOption = regexp.MustCompile(`\(\s*\d+\s*\)\s*([^\n(]+)`)
	dashOption     = regexp.MustCompile(`(?m)^\s*-\s+(.+)$`)

	// yesNoMarker is the bare affirmance form; it is not itself an option.
	yesNoMarker = regexp.MustCompile(`(?i)^y(es)?\s*/\s*no?$`)
)

// Thought extracts a reasoning or action fragment from the chunk. Returns
// nil when no pattern matches; callers must not assume every chunk yields
// a thought.
func Thought(text string) *model.Thought {
	for _, rule := range thoughtRules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		content := strings.TrimSpace(m[1])
		if content == "" {
			continue
		}
		return &model.Thought{Kind: rule.kind, Content: content}
	}
	return nil
}

// Question extracts the first question line plus any quick-reply candidates
// found anywhere in the fragment. Quick replies are unioned across the
// bracket, numbered and dash patterns in that priority; a bare [Y/n] marker
// defaults to Yes/No only when no explicit options were found. Returns nil
// when no question pattern matched, even if option-like text exists.
func Question(text string) *model.Question {
	question := findQuestionLine(text)
	if question == "" {
		return nil
	}

	replies := scanQuickReplies(text)
	if len(replies) == 0 && containsAny(strings.ToLower(text), "[y/n]", "(y/n)") {
		replies = []string{"Yes", "No"}
	}
	return &model.Question{Question: question, QuickReplies: replies}
}

func findQuestionLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if idx := strings.Index(trimmed, "?"); idx >= 0 {
			return trimmed[:idx+1]
		}
		if containsAny(strings.ToLower(trimmed), questionTemplates...) {
			return trimmed
		}
	}
	return ""
}

func scanQuickReplies(text string) []string {
	var replies []string
	seen := map[string]bool{}
	add := func(raw string) {
		option := strings.TrimSpace(strings.TrimRight(raw, ".,;"))
		if option == "" || yesNoMarker.MatchString(option) || seen[option] {
			return
		}
		seen[option] = true
		replies = append(replies, option)
	}
	for _, m := range bracketOption.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range numberedOption.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range dashOption.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return replies
}

const (
	charsPerToken = 4
	contextWindow = 200000
)

// ContextUsage estimates how much of the model's context window the
// accumulated output occupies, as a 0-100 percentage. A rough 4-chars-per-
// token heuristic against a 200k window; display-only, never a hard limit.
func ContextUsage(buffer string) int {
	tokens := float64(len(buffer)) / charsPerToken
	pct := tokens / contextWindow * 100
	return int(math.Round(math.Min(100, pct)))
}
