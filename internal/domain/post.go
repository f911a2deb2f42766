package domain

import (
	"strings"
	"time"
)

// Placeholders used when a feed card lacks a field.
const (
	UnknownAuthor = "Unknown Author"
	UnknownTime   = "Unknown Time"
)

// DegradedProblem marks a row whose enrichment call failed.
const DegradedProblem = "Error processing with AI"

// CommunityPost is a single card scraped from a community feed.
type CommunityPost struct {
	ID           string
	Author       string
	Timestamp    string
	Content      string
	URL          string
	CommunityURL string
}

// Insight is the structured extraction produced by the enrichment model.
type Insight struct {
	Problem  string
	Category string
	Tags     []string
	Solution string
}

// DegradedInsight is stored when a post could not be enriched.
func DegradedInsight() Insight {
	return Insight{Problem: DegradedProblem}
}

// Status enumerates the lifecycle of a stored row.
type Status string

const (
	StatusNew       Status = "New"
	StatusProcessed Status = "Processed"
	StatusDraft     Status = "Draft"
)

// Candidate is the condensed view of a stored post offered to the selector.
type Candidate struct {
	ID      string `json:"id"`
	Problem string `json:"problem"`
	Snippet string `json:"contentSnippet"`
}

const (
	candidateSnippetLen = 200
	generatedSnippetLen = 300
)

// NewPostRow builds the row appended for a freshly enriched post.
func NewPostRow(post CommunityPost, insight Insight, now time.Time) PostRow {
	return PostRow{
		ID:              post.ID,
		Problem:         insight.Problem,
		OriginalContent: post.Content,
		Solution:        insight.Solution,
		Tags:            insight.Tags,
		Category:        insight.Category,
		Status:          StatusNew,
		CreatedAt:       now.UTC().Format(time.RFC3339),
		AuthorName:      post.Author,
		PostTimestamp:   post.Timestamp,
		PostURL:         post.URL,
		CommunityURL:    post.CommunityURL,
	}
}

// Candidate condenses the row for selection prompts.
func (r PostRow) Candidate() Candidate {
	problem := r.Problem
	if problem == "" {
		problem = "Unknown Problem"
	}
	return Candidate{
		ID:      r.ID,
		Problem: problem,
		Snippet: Truncate(r.OriginalContent, candidateSnippetLen) + "...",
	}
}

// NewGeneratedPostRow records a draft written from the source row.
func NewGeneratedPostRow(source PostRow, content string, now time.Time) GeneratedPostRow {
	return GeneratedPostRow{
		OriginalPostID: source.ID,
		Snippet:        Truncate(source.OriginalContent, generatedSnippetLen) + "...",
		Content:        content,
		GeneratedAt:    now.UTC().Format(time.RFC3339),
		Status:         StatusDraft,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SplitTags parses the comma-separated tags cell.
func SplitTags(cell string) []string {
	var tags []string
	for _, tag := range strings.Split(cell, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
