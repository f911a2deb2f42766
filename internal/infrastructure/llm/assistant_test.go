package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"CommunityInsights/internal/domain"
)

type scriptedCompleter struct {
	reply   string
	err     error
	tasks   []Task
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, task Task, prompt string) (string, error) {
	s.tasks = append(s.tasks, task)
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		want  domain.Insight
	}{
		{
			name: "fenced json",
			reply: "```json\n{\"problemIdentified\":\"Low conversion\",\"category\":\"Marketing\"," +
				"\"tags\":[\"funnels\",\" ads \"],\"potentialSolution\":\"Shorter forms\"}\n```",
			want: domain.Insight{Problem: "Low conversion", Category: "Marketing", Tags: []string{"funnels", "ads"}, Solution: "Shorter forms"},
		},
		{
			name:  "null solution and string tags",
			reply: `Sure! {"problemIdentified":"Churn","category":"Business","tags":"retention, onboarding","potentialSolution":null}`,
			want:  domain.Insight{Problem: "Churn", Category: "Business", Tags: []string{"retention", "onboarding"}},
		},
		{
			name:  "literal null string",
			reply: `{"problemIdentified":"Churn","potentialSolution":"null"}`,
			want:  domain.Insight{Problem: "Churn"},
		},
		{
			name:  "no json at all",
			reply: "I could not find a problem here.",
			want:  domain.Insight{Problem: "No problem identified"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			completer := &scriptedCompleter{reply: tc.reply}
			got, err := NewAssistant(completer, nil).Summarize(context.Background(), "post body")
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got.Problem != tc.want.Problem || got.Category != tc.want.Category || got.Solution != tc.want.Solution {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if strings.Join(got.Tags, "|") != strings.Join(tc.want.Tags, "|") {
				t.Fatalf("tags = %v, want %v", got.Tags, tc.want.Tags)
			}
			if completer.tasks[0] != TaskInsight || !strings.Contains(completer.prompts[0], `"post body"`) {
				t.Fatalf("unexpected call %v %q", completer.tasks, completer.prompts[0])
			}
		})
	}
}

func TestSummarizeErrors(t *testing.T) {
	t.Parallel()

	a := NewAssistant(&scriptedCompleter{err: errors.New("quota exceeded")}, nil)
	if _, err := a.Summarize(context.Background(), "x"); err == nil {
		t.Fatal("expected completer error")
	}

	a = NewAssistant(&scriptedCompleter{reply: `{"problemIdentified": }`}, nil)
	if _, err := a.Summarize(context.Background(), "x"); err == nil {
		t.Fatal("expected parse error")
	}
}

func candidates(n int) []domain.Candidate {
	out := make([]domain.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Candidate{ID: fmt.Sprintf("id-%d", i), Problem: "p", Snippet: "s..."})
	}
	return out
}

func TestSelectOne(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "offered id", reply: " id-3\n", want: "id-3"},
		{name: "quoted id", reply: "`id-4`", want: "id-4"},
		{name: "none", reply: "NONE", want: ""},
		{name: "unknown id", reply: "id-99", want: ""},
		{name: "beyond offered window", reply: "id-25", want: ""},
		{name: "empty", reply: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			completer := &scriptedCompleter{reply: tc.reply}
			got, err := NewAssistant(completer, nil).SelectOne(context.Background(), candidates(30))
			if err != nil {
				t.Fatalf("SelectOne: %v", err)
			}
			if got != tc.want {
				t.Fatalf("SelectOne = %q, want %q", got, tc.want)
			}
			if completer.tasks[0] != TaskWriting {
				t.Fatalf("expected writing task")
			}
			prompt := completer.prompts[0]
			if !strings.Contains(prompt, `"contentSnippet": "s..."`) || !strings.Contains(prompt, `"id-19"`) || strings.Contains(prompt, `"id-20"`) {
				t.Fatalf("prompt must offer exactly the first 20 candidates")
			}
		})
	}
}

func TestSelectOneNoCandidates(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{reply: "id-1"}
	got, err := NewAssistant(completer, nil).SelectOne(context.Background(), nil)
	if err != nil || got != "" {
		t.Fatalf("expected empty selection, got %q, %v", got, err)
	}
	if len(completer.prompts) != 0 {
		t.Fatal("model must not be called without candidates")
	}
}

func TestDraft(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{reply: "\n  Hi all—here is what worked for me.  \n"}
	source := domain.PostRow{
		ID:              "id-1",
		Problem:         "Pricing",
		OriginalContent: strings.Repeat("x", 800),
		Solution:        "Raise prices",
	}

	got, err := NewAssistant(completer, nil).Draft(context.Background(), source)
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got != "Hi all—here is what worked for me." {
		t.Fatalf("unexpected draft %q", got)
	}

	prompt := completer.prompts[0]
	if !strings.Contains(prompt, `"Pricing"`) || !strings.Contains(prompt, `"Raise prices"`) {
		t.Fatalf("prompt missing source fields")
	}
	if !strings.Contains(prompt, strings.Repeat("x", 500)+`..."`) || strings.Contains(prompt, strings.Repeat("x", 501)) {
		t.Fatalf("content snippet must be capped at 500 characters")
	}
}

func TestDraftWithoutSolution(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{reply: "draft"}
	if _, err := NewAssistant(completer, nil).Draft(context.Background(), domain.PostRow{ID: "id-1"}); err != nil {
		t.Fatalf("Draft: %v", err)
	}
	prompt := completer.prompts[0]
	if strings.Contains(prompt, "Suggested Solution") || !strings.Contains(prompt, "a problem mentioned previously") {
		t.Fatalf("unexpected prompt for bare row")
	}
}
