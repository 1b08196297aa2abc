// Package classify maps raw terminal output fragments onto the agent
// activity/status model. All functions are pure and never return errors.
// Unmatched input means "no transition", because arbitrary CLI output is
// the common case, not a failure.
package classify

import (
	"regexp"
	"strings"

	"github.com/agentden/agentden/internal/model"
)

// activityRule binds one activity to its ordered pattern list. Rules are
// evaluated top to bottom; the first category with any match wins.
type activityRule struct {
	activity model.Activity
	patterns []string
}

var activityRules = []activityRule{
	{model.ActivityThinking, []string{"thinking", "think about", "pondering", "considering", "analyzing", "reasoning"}},
	{model.ActivityWriting, []string{"writing", "wrote", "creating", "editing", "updating", "applying patch"}},
	{model.ActivityReading, []string{"reading", "looking at", "examining", "opening", "viewing"}},
	{model.ActivityBuilding, []string{"building", "compiling", "running build", "installing"}},
	{model.ActivityTesting, []string{"testing", "running test", "go test", "npm test", "pytest", "test suite"}},
	{model.ActivitySearching, []string{"searching", "grep", "looking for", "finding", "scanning"}},
}

var awaitingPatterns = []string{
	"[y/n]", "(y/n)", "[yes/no]",
	"press enter",
	"should i",
	"would you like",
	"do you want",
	"waiting for input",
	"awaiting input",
	"input required",
}

var errorPatterns = []string{
	"error:", "failed", "exception", "permission denied", "panic:", "fatal:", "traceback",
}

var completePatterns = []string{
	"task complete", "all tests pass", "completed successfully", "all done", "✅",
}

// trailingQuestion matches a line that ends in a question mark, ignoring
// trailing whitespace. PTY output uses CRLF line endings, so a carriage
// return before the newline must match too.
var trailingQuestion = regexp.MustCompile(`(?m)\?[ \t\r]*$`)

// Activity returns the first matching activity category in priority order,
// or idle when nothing matches. Only one activity is ever returned.
func Activity(text string) model.Activity {
	normalized := strings.ToLower(text)
	for _, rule := range activityRules {
		if containsAny(normalized, rule.patterns...) {
			return rule.activity
		}
	}
	return model.ActivityIdle
}

// Status evaluates the fragment against the prior status in strict priority
// order: awaiting-input beats error, error beats completion, completion
// beats activity-derived channeling. An explicit question must always win
// over an error-looking line in the same fragment.
func Status(text string, prior model.Status) model.Status {
	normalized := strings.ToLower(text)
	switch {
	case trailingQuestion.MatchString(text), containsAny(normalized, awaitingPatterns...):
		return model.StatusAwaiting
	case containsAny(normalized, errorPatterns...):
		return model.StatusError
	case containsAny(normalized, completePatterns...):
		return model.StatusComplete
	case Activity(text) != model.ActivityIdle:
		return model.StatusChanneling
	case prior == model.StatusSpawning:
		return model.StatusDormant
	default:
		return prior
	}
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
