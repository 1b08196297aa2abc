package classify_test

import (
	"testing"

	"github.com/agentden/agentden/internal/classify"
	"github.com/agentden/agentden/internal/model"
)

func TestActivity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Activity
	}{
		{name: "thinking", text: "Let me think about this problem...", want: model.ActivityThinking},
		{name: "testing", text: "Running tests now", want: model.ActivityTesting},
		{name: "writing", text: "Writing src/main.go", want: model.ActivityWriting},
		{name: "reading", text: "Reading the config file", want: model.ActivityReading},
		{name: "building", text: "Compiling the project", want: model.ActivityBuilding},
		{name: "searching", text: "grep -r TODO .", want: model.ActivitySearching},
		{name: "plain-output-is-idle", text: "hello world", want: model.ActivityIdle},
		{name: "empty-is-idle", text: "", want: model.ActivityIdle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify.Activity(tc.text); got != tc.want {
				t.Fatalf("Activity(%q)=%q want=%q", tc.text, got, tc.want)
			}
		})
	}
}

func TestActivityPriorityOrder(t *testing.T) {
	// "thinking" outranks every later category even when both match.
	got := classify.Activity("thinking about which tests to run")
	if got != model.ActivityThinking {
		t.Fatalf("expected thinking to win over testing, got %q", got)
	}
}

func TestStatusPriorityOrder(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		prior model.Status
		want  model.Status
	}{
		{name: "question-wins-over-error", text: "build failed. Should I retry?", prior: model.StatusChanneling, want: model.StatusAwaiting},
		{name: "error-wins-over-activity", text: "error: writing file denied", prior: model.StatusChanneling, want: model.StatusError},
		{name: "complete-wins-over-activity", text: "✅ All tests pass", prior: model.StatusChanneling, want: model.StatusComplete},
		{name: "activity-derives-channeling", text: "Running tests now", prior: model.StatusDormant, want: model.StatusChanneling},
		{name: "spawning-promotes-to-dormant", text: "login banner", prior: model.StatusSpawning, want: model.StatusDormant},
		{name: "no-match-keeps-prior", text: "plain chatter", prior: model.StatusAwaiting, want: model.StatusAwaiting},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify.Status(tc.text, tc.prior); got != tc.want {
				t.Fatalf("Status(%q, %q)=%q want=%q", tc.text, tc.prior, got, tc.want)
			}
		})
	}
}

func TestStatusTrailingQuestionAwaitsRegardlessOfPrior(t *testing.T) {
	priors := []model.Status{
		model.StatusSpawning, model.StatusDormant, model.StatusChanneling,
		model.StatusAwaiting, model.StatusComplete, model.StatusError,
	}
	for _, prior := range priors {
		if got := classify.Status("Which file do you mean?", prior); got != model.StatusAwaiting {
			t.Fatalf("prior=%q: got %q, want awaiting", prior, got)
		}
	}
}

func TestStatusTrailingQuestionCRLF(t *testing.T) {
	// PTYs echo CRLF line endings; the carriage return must not hide the
	// trailing question mark.
	tests := []struct {
		name string
		text string
	}{
		{name: "crlf-terminated", text: "Which file do you mean?\r\n"},
		{name: "crlf-mid-fragment", text: "Which file do you mean?\r\nsrc/main.go"},
		{name: "bare-cr", text: "Which file do you mean?\r"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify.Status(tc.text, model.StatusChanneling); got != model.StatusAwaiting {
				t.Fatalf("Status(%q)=%q want awaiting", tc.text, got)
			}
		})
	}
}

func TestQuestionExtractedFromCRLFFragment(t *testing.T) {
	q := classify.Question("Should I delete the file?\r\n[Yes] [No]\r\n")
	if q == nil {
		t.Fatal("expected a question")
	}
	if q.Question != "Should I delete the file?" {
		t.Fatalf("question=%q", q.Question)
	}
	if len(q.QuickReplies) != 2 || q.QuickReplies[0] != "Yes" || q.QuickReplies[1] != "No" {
		t.Fatalf("quickReplies=%v", q.QuickReplies)
	}
}

func TestThought(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind model.ThoughtKind
		wantText string
	}{
		{name: "thinking-block", text: "noise <thinking>the cache is stale</thinking> noise", wantKind: model.ThoughtThinking, wantText: "the cache is stale"},
		{name: "thinking-prefix", text: "✻ Thinking: maybe a race in the watcher", wantKind: model.ThoughtThinking, wantText: "maybe a race in the watcher"},
		{name: "action-marker", text: "⏺ Update(src/main.go)", wantKind: model.ThoughtAction, wantText: "Update(src/main.go)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify.Thought(tc.text)
			if got == nil {
				t.Fatalf("Thought(%q)=nil", tc.text)
			}
			if got.Kind != tc.wantKind || got.Content != tc.wantText {
				t.Fatalf("Thought(%q)={%q %q} want={%q %q}", tc.text, got.Kind, got.Content, tc.wantKind, tc.wantText)
			}
		})
	}
}

func TestThoughtNoMatch(t *testing.T) {
	if got := classify.Thought("just ordinary output"); got != nil {
		t.Fatalf("expected nil thought, got %+v", got)
	}
}

func TestQuestionBracketOptions(t *testing.T) {
	q := classify.Question("Should I delete the file? [Yes] [No]")
	if q == nil {
		t.Fatal("expected a question")
	}
	if q.Question != "Should I delete the file?" {
		t.Fatalf("question=%q", q.Question)
	}
	if len(q.QuickReplies) != 2 || q.QuickReplies[0] != "Yes" || q.QuickReplies[1] != "No" {
		t.Fatalf("quickReplies=%v, want [Yes No] from the bracket pattern", q.QuickReplies)
	}
}

func TestQuestionYesNoDefault(t *testing.T) {
	q := classify.Question("Overwrite existing config? [Y/n]")
	if q == nil {
		t.Fatal("expected a question")
	}
	if len(q.QuickReplies) != 2 || q.QuickReplies[0] != "Yes" || q.QuickReplies[1] != "No" {
		t.Fatalf("quickReplies=%v, want the Yes/No default", q.QuickReplies)
	}
}

func TestQuestionNumberedAndDashOptions(t *testing.T) {
	q := classify.Question("Which approach?\n(1) rewrite the parser\n(2) patch the lexer\n- skip for now")
	if q == nil {
		t.Fatal("expected a question")
	}
	want := []string{"rewrite the parser", "patch the lexer", "skip for now"}
	if len(q.QuickReplies) != len(want) {
		t.Fatalf("quickReplies=%v want=%v", q.QuickReplies, want)
	}
	for i := range want {
		if q.QuickReplies[i] != want[i] {
			t.Fatalf("quickReplies[%d]=%q want=%q", i, q.QuickReplies[i], want[i])
		}
	}
}

func TestQuestionNilWithoutQuestionPattern(t *testing.T) {
	// Options alone are meaningless without a question line.
	if q := classify.Question("[Yes] [No]"); q != nil {
		t.Fatalf("expected nil, got %+v", q)
	}
}

func TestContextUsageMonotonicAndClamped(t *testing.T) {
	prev := 0
	for _, n := range []int{0, 100, 10000, 400000, 799999, 800000, 2000000} {
		got := classify.ContextUsage(string(make([]byte, n)))
		if got < prev {
			t.Fatalf("usage decreased: len=%d got=%d prev=%d", n, got, prev)
		}
		if got < 0 || got > 100 {
			t.Fatalf("usage out of range: len=%d got=%d", n, got)
		}
		prev = got
	}
	if got := classify.ContextUsage(string(make([]byte, 800000))); got != 100 {
		t.Fatalf("expected clamp to 100 at 800000 chars, got %d", got)
	}
}
