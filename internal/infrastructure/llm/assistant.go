package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// Task selects the model tier for a prompt.
type Task int

const (
	// TaskInsight is short structured extraction run on every new post.
	TaskInsight Task = iota
	// TaskWriting covers candidate selection and drafting.
	TaskWriting
)

func (t Task) String() string {
	if t == TaskWriting {
		return "writing"
	}
	return "insight"
}

// Completer turns a prompt into the model's text reply.
type Completer interface {
	Complete(ctx context.Context, task Task, prompt string) (string, error)
}

const (
	noSelection        = "NONE"
	noProblem          = "No problem identified"
	maxCandidates      = 20
	draftSnippetLength = 500
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Assistant implements enrichment, selection and drafting on top of a Completer.
type Assistant struct {
	completer Completer
	logger    *slog.Logger
}

var (
	_ ports.Enricher          = (*Assistant)(nil)
	_ ports.CandidateSelector = (*Assistant)(nil)
	_ ports.Drafter           = (*Assistant)(nil)
)

// NewAssistant wraps a provider client.
func NewAssistant(completer Completer, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assistant{completer: completer, logger: logger}
}

type insightReply struct {
	Problem  string          `json:"problemIdentified"`
	Category string          `json:"category"`
	Tags     json.RawMessage `json:"tags"`
	Solution *string         `json:"potentialSolution"`
}

// Summarize extracts problem, category, tags and any suggested solution from a post.
func (a *Assistant) Summarize(ctx context.Context, text string) (domain.Insight, error) {
	reply, err := a.completer.Complete(ctx, TaskInsight, insightPrompt(text))
	if err != nil {
		return domain.Insight{}, fmt.Errorf("summarize post: %w", err)
	}

	var parsed insightReply
	if raw := jsonObject.FindString(reply); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return domain.Insight{}, fmt.Errorf("parse insight reply: %w", err)
		}
	}

	insight := domain.Insight{
		Problem:  strings.TrimSpace(parsed.Problem),
		Category: strings.TrimSpace(parsed.Category),
		Tags:     parseTags(parsed.Tags),
	}
	if insight.Problem == "" {
		insight.Problem = noProblem
	}
	if parsed.Solution != nil {
		insight.Solution = cleanSolution(*parsed.Solution)
	}
	return insight, nil
}

// SelectOne asks the model for the best drafting candidate. It returns "" when
// the model declines or answers with an id that was not offered.
func (a *Assistant) SelectOne(ctx context.Context, candidates []domain.Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	offered := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		offered[c.ID] = struct{}{}
	}

	summaries, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	reply, err := a.completer.Complete(ctx, TaskWriting, selectionPrompt(string(summaries)))
	if err != nil {
		return "", fmt.Errorf("select candidate: %w", err)
	}

	selected := strings.Trim(strings.TrimSpace(reply), "`\"' \n")
	switch {
	case selected == "":
		a.logger.Warn("selection returned no answer")
		return "", nil
	case strings.EqualFold(selected, noSelection):
		a.logger.Info("no candidate suitable for drafting", "candidates", len(candidates))
		return "", nil
	}

	if _, ok := offered[selected]; !ok {
		a.logger.Warn("selection returned an id that was not offered", "id", selected)
		return "", nil
	}
	return selected, nil
}

// Draft writes a new community post inspired by the source row.
func (a *Assistant) Draft(ctx context.Context, source domain.PostRow) (string, error) {
	reply, err := a.completer.Complete(ctx, TaskWriting, draftPrompt(source))
	if err != nil {
		return "", fmt.Errorf("draft post: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var tags []string
		for _, tag := range list {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		return tags
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return domain.SplitTags(joined)
	}
	return nil
}

func cleanSolution(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a":
		return ""
	}
	return s
}
