package parser

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"CommunityInsights/internal/scanner"
)

// Skool renders hashed class names, so every selector matches on the stable prefix.
const (
	postSelector    = `div[class*="PostItemCardContent-"]`
	linkSelector    = `a[href][class*="ChildrenLink-"]:has(div[class*="TitleWrapper"])`
	authorSelector  = `span[class*="UserNameText-"] span`
	timeSelector    = `div[class*="PostTimeContent-"]`
	contentSelector = `div[class*="ContentPreviewWrapper-"]`
)

var blockBoundary = regexp.MustCompile(`(?i)<(/?(?:p|div|li|ul|ol|h[1-6]|blockquote|br))\b`)

// HTMLSource yields the current rendered markup of the page.
type HTMLSource interface {
	HTML(ctx context.Context) (string, error)
}

// SkoolExtractor reads post cards from a rendered Skool community feed.
type SkoolExtractor struct {
	source HTMLSource
	policy *bluemonday.Policy
}

var _ scanner.PageExtractor = (*SkoolExtractor)(nil)

// NewSkoolExtractor wires the extractor to a page that can serialise its DOM.
func NewSkoolExtractor(source HTMLSource) *SkoolExtractor {
	return &SkoolExtractor{
		source: source,
		policy: bluemonday.StrictPolicy(),
	}
}

// FindPosts snapshots the page and returns one element per rendered post card.
func (s *SkoolExtractor) FindPosts(ctx context.Context) ([]scanner.Element, error) {
	markup, err := s.source.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	cards := doc.Find(postSelector)
	elements := make([]scanner.Element, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		elements = append(elements, card)
	})
	return elements, nil
}

// ExtractFields reads the permalink, author, time and content preview of a card.
func (s *SkoolExtractor) ExtractFields(el scanner.Element) (scanner.RawFields, error) {
	card, ok := el.(*goquery.Selection)
	if !ok || card == nil {
		return scanner.RawFields{}, fmt.Errorf("unexpected element type %T", el)
	}

	href, _ := card.Find(linkSelector).First().Attr("href")

	var content string
	if preview := card.Find(contentSelector).First(); preview.Length() > 0 {
		raw, err := preview.Html()
		if err != nil {
			return scanner.RawFields{}, fmt.Errorf("read content preview: %w", err)
		}
		content = s.plainText(raw)
	}

	return scanner.RawFields{
		Href:      strings.TrimSpace(href),
		Author:    collapse(card.Find(authorSelector).First().Text()),
		Timestamp: collapse(card.Find(timeSelector).First().Text()),
		Content:   content,
	}, nil
}

// plainText drops all markup from a preview fragment. Block boundaries become
// spaces so paragraphs do not glue words together.
func (s *SkoolExtractor) plainText(fragment string) string {
	spaced := blockBoundary.ReplaceAllString(fragment, " <$1")
	return collapse(html.UnescapeString(s.policy.Sanitize(spaced)))
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
