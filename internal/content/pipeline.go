// Package content implements the fetch-to-document transform pipeline:
// tag filtering, readability extraction, base64-image stripping, link/
// metadata collection, markdown conversion, and plain-text derivation.
package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/crawlkit/internal/models"
)

// Pipeline runs the fixed transform sequence against one fetched page.
type Pipeline struct {
	logger   arbor.ILogger
	markdown *MarkdownConverter
}

func NewPipeline(logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		markdown: NewMarkdownConverter(),
	}
}

// Run executes the ten-step pipeline and returns a populated Document. The
// caller has already set ID/SourceURL/FinalURL/StatusCode/FetchedAt.
func (p *Pipeline) Run(doc *models.Document, rawHTML string, opts models.ScrapeOptions) error {
	baseURL, err := url.Parse(doc.FinalURL)
	if err != nil {
		return fmt.Errorf("content pipeline: parse final url %q: %w", doc.FinalURL, err)
	}

	// 1. parse
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return fmt.Errorf("content pipeline: parse html: %w", err)
	}

	// 2. exclude/include tags
	applyTagFilters(parsed, opts.IncludeTags, opts.ExcludeTags)

	filteredHTML, err := parsed.Html()
	if err != nil {
		return fmt.Errorf("content pipeline: serialize filtered html: %w", err)
	}

	mainHTML := filteredHTML
	title := extractTitle(parsed)
	description, metadata := extractMetadata(parsed)

	// 3. readability (only when the caller asked for the main content, not
	// the raw page — matches the teacher's onlyMainContent toggle).
	if opts.OnlyMainContent {
		if article, err := readability.FromReader(strings.NewReader(filteredHTML), baseURL); err == nil {
			mainHTML = article.Content
			if article.Title != "" {
				title = article.Title
			}
			if article.Excerpt != "" && description == "" {
				description = article.Excerpt
			}
		} else if p.logger != nil {
			p.logger.Warn().Err(err).Str("url", doc.FinalURL).Msg("readability extraction failed, using filtered html")
		}
	}

	// 4. strip base64 images
	if opts.RemoveBase64Images {
		mainHTML = stripBase64Images(mainHTML)
	}

	mainDoc, err := goquery.NewDocumentFromReader(strings.NewReader(mainHTML))
	if err != nil {
		return fmt.Errorf("content pipeline: reparse main html: %w", err)
	}

	// 5. resolve relative URLs to absolute against the final URL
	resolveURLs(mainDoc, baseURL)
	resolvedHTML, err := mainDoc.Html()
	if err != nil {
		return fmt.Errorf("content pipeline: serialize resolved html: %w", err)
	}

	// 6. collect links and remaining metadata
	links := extractLinks(mainDoc)
	if lang, ok := parsed.Find("html").Attr("lang"); ok {
		doc.Language = lang
	}

	// 7. serialize (resolvedHTML already produced above)

	// 8. markdown convert
	markdown, err := p.markdown.Convert(resolvedHTML, doc.FinalURL)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn().Err(err).Str("url", doc.FinalURL).Msg("markdown conversion failed, falling back to stripped text")
		}
		markdown = stripTags(resolvedHTML)
	}

	// 9. derive plain text from the converted markdown, not the raw HTML,
	// so text and markdown formats always agree on content boundaries.
	text := textFromMarkdown(markdown)

	doc.Title = title
	doc.Description = description
	doc.Metadata = metadata
	doc.RawHTML = rawHTML
	if opts.WantsHTML() {
		doc.HTML = resolvedHTML
	}
	if opts.WantsRawHTML() {
		doc.RawHTML = rawHTML
	} else {
		doc.RawHTML = ""
	}
	doc.Markdown = markdown
	doc.Text = text
	doc.Links = links
	return nil
}

func stripTags(html string) string {
	re := regexp.MustCompile(`<[^>]*>`)
	stripped := re.ReplaceAllString(html, "")
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(stripped, " "))
}
