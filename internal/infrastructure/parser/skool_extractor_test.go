package parser

import (
	"context"
	"errors"
	"testing"

	"CommunityInsights/internal/scanner"
)

type staticSource struct {
	html string
	err  error
}

func (s staticSource) HTML(context.Context) (string, error) {
	return s.html, s.err
}

const feedHTML = `
<html><body>
<div class="styled__PostItemCardContent-sc-1abc">
  <div class="styled__PostHeader-sc-9">
    <span class="styled__UserNameText-sc-xyz"><span>Jane Doe</span></span>
    <div class="styled__PostTimeContent-sc-42">2d • General discussion</div>
  </div>
  <a class="styled__ChildrenLink-sc-77" href="/ai-automation/how-do-i-price">
    <div class="styled__TitleWrapper-sc-5">How do I price my offer?</div>
  </a>
  <div class="styled__ContentPreviewWrapper-sc-3">
    <p>I keep&nbsp;<b>undercharging</b>.</p><p>Any tips &amp; tricks?</p>
  </div>
</div>
<div class="styled__PostItemCardContent-sc-1abc">
  <a class="styled__ChildrenLink-sc-77" href="/@jane">profile</a>
  <a class="styled__ChildrenLink-sc-77" href="/ai-automation/second">
    <div class="styled__TitleWrapper-sc-5">Second</div>
  </a>
</div>
<div class="unrelated">not a post</div>
</body></html>`

func TestSkoolExtractorFindsCards(t *testing.T) {
	t.Parallel()

	ex := NewSkoolExtractor(staticSource{html: feedHTML})
	elements, err := ex.FindPosts(context.Background())
	if err != nil {
		t.Fatalf("FindPosts: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(elements))
	}

	first, err := ex.ExtractFields(elements[0])
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if first.Href != "/ai-automation/how-do-i-price" {
		t.Fatalf("unexpected href: %q", first.Href)
	}
	if first.Author != "Jane Doe" {
		t.Fatalf("unexpected author: %q", first.Author)
	}
	if first.Timestamp != "2d • General discussion" {
		t.Fatalf("unexpected timestamp: %q", first.Timestamp)
	}
	if first.Content != "I keep undercharging. Any tips & tricks?" {
		t.Fatalf("unexpected content: %q", first.Content)
	}
}

func TestSkoolExtractorMissingFields(t *testing.T) {
	t.Parallel()

	ex := NewSkoolExtractor(staticSource{html: feedHTML})
	elements, err := ex.FindPosts(context.Background())
	if err != nil {
		t.Fatalf("FindPosts: %v", err)
	}

	second, err := ex.ExtractFields(elements[1])
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if second.Href != "/ai-automation/second" {
		t.Fatalf("expected title link, got %q", second.Href)
	}
	if second.Author != "" || second.Timestamp != "" || second.Content != "" {
		t.Fatalf("expected empty fields, got %+v", second)
	}
}

func TestSkoolExtractorErrors(t *testing.T) {
	t.Parallel()

	ex := NewSkoolExtractor(staticSource{err: errors.New("target closed")})
	if _, err := ex.FindPosts(context.Background()); err == nil {
		t.Fatal("expected error from html source")
	}

	if _, err := ex.ExtractFields(scanner.Element("not a selection")); err == nil {
		t.Fatal("expected error for foreign element")
	}
}

func TestSkoolExtractorEmptyFeed(t *testing.T) {
	t.Parallel()

	ex := NewSkoolExtractor(staticSource{html: "<html><body><p>Loading…</p></body></html>"})
	elements, err := ex.FindPosts(context.Background())
	if err != nil {
		t.Fatalf("FindPosts: %v", err)
	}
	if len(elements) != 0 {
		t.Fatalf("expected no cards, got %d", len(elements))
	}
}
