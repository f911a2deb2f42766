package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// GeneratedSheetPrefix namespaces the per-community sheet of drafted posts.
const GeneratedSheetPrefix = "posts-"

// PostHeader is the fixed column order of a community sheet.
var PostHeader = []string{
	"id",
	"problem",
	"originalContent",
	"suggestedSolution",
	"tags",
	"category",
	"status",
	"timestamp",
	"authorName",
	"postTimestamp",
	"postUrl",
	"communityUrl",
}

// GeneratedPostHeader is the fixed column order of a posts- sheet.
var GeneratedPostHeader = []string{
	"originalPostId",
	"originalContentSnippet",
	"generatedTitle",
	"generatedContent",
	"generationTimestamp",
	"status",
}

// HeaderFor returns the header the store uses for the named sheet.
func HeaderFor(sheet string) []string {
	if strings.HasPrefix(sheet, GeneratedSheetPrefix) {
		return GeneratedPostHeader
	}
	return PostHeader
}

// SheetName derives the sheet of a community from the last segment of its URL.
func SheetName(communityURL string) string {
	raw := strings.TrimSpace(communityURL)
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		raw = parsed.Path
	}
	raw = strings.TrimRight(raw, "/")
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		raw = raw[idx+1:]
	}
	return raw
}

// GeneratedSheetName returns the drafts sheet paired with a community sheet.
func GeneratedSheetName(sheet string) string {
	return GeneratedSheetPrefix + sheet
}

// PostRow is one record of a community sheet.
type PostRow struct {
	ID              string
	Problem         string
	OriginalContent string
	Solution        string
	Tags            []string
	Category        string
	Status          Status
	CreatedAt       string
	AuthorName      string
	PostTimestamp   string
	PostURL         string
	CommunityURL    string
}

// Values projects the row onto PostHeader order.
func (r PostRow) Values() []string {
	return []string{
		r.ID,
		r.Problem,
		r.OriginalContent,
		r.Solution,
		strings.Join(r.Tags, ", "),
		r.Category,
		string(r.Status),
		r.CreatedAt,
		r.AuthorName,
		r.PostTimestamp,
		r.PostURL,
		r.CommunityURL,
	}
}

// ParsePostRow reads a positional row back. Trailing blank cells may be
// missing; rows wider than the header are rejected.
func ParsePostRow(values []string) (PostRow, error) {
	if len(values) > len(PostHeader) {
		return PostRow{}, fmt.Errorf("row has %d cells, header has %d", len(values), len(PostHeader))
	}
	cells := make([]string, len(PostHeader))
	copy(cells, values)

	return PostRow{
		ID:              strings.TrimSpace(cells[0]),
		Problem:         cells[1],
		OriginalContent: cells[2],
		Solution:        cells[3],
		Tags:            SplitTags(cells[4]),
		Category:        cells[5],
		Status:          Status(strings.TrimSpace(cells[6])),
		CreatedAt:       cells[7],
		AuthorName:      cells[8],
		PostTimestamp:   cells[9],
		PostURL:         cells[10],
		CommunityURL:    cells[11],
	}, nil
}

// GeneratedPostRow is one record of a posts- sheet.
type GeneratedPostRow struct {
	OriginalPostID string
	Snippet        string
	Title          string
	Content        string
	GeneratedAt    string
	Status         Status
}

// Values projects the row onto GeneratedPostHeader order.
func (r GeneratedPostRow) Values() []string {
	return []string{
		r.OriginalPostID,
		r.Snippet,
		r.Title,
		r.Content,
		r.GeneratedAt,
		string(r.Status),
	}
}
