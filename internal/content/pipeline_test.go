package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/crawlkit/internal/models"
)

const samplePage = `
<html lang="en">
<head>
<title>Sample Page</title>
<meta name="description" content="A sample page for testing">
<meta property="og:title" content="OG Sample Page">
</head>
<body>
<nav><a href="/nav-link">Nav</a></nav>
<main>
<h1>Heading</h1>
<p>Hello <strong>world</strong>, visit <a href="/relative">this page</a>.</p>
<img src="data:image/png;base64,AAAA" alt="inline">
</main>
<script>console.log("x")</script>
</body>
</html>`

func TestPipelineRun(t *testing.T) {
	p := NewPipeline(nil)
	doc := &models.Document{
		ID:         "doc-1",
		SourceURL:  "https://example.com/page",
		FinalURL:   "https://example.com/page",
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}
	opts := models.ScrapeOptions{
		Formats:            []models.Format{models.FormatMarkdown, models.FormatHTML},
		RemoveBase64Images: true,
	}

	err := p.Run(doc, samplePage, opts)
	require.NoError(t, err)

	assert.Equal(t, "Sample Page", doc.Title)
	assert.Equal(t, "A sample page for testing", doc.Description)
	assert.Equal(t, "en", doc.Language)
	assert.Contains(t, doc.Markdown, "Heading")
	assert.Contains(t, doc.Markdown, "world")
	assert.NotContains(t, doc.HTML, "base64")
	assert.NotContains(t, doc.Markdown, "console.log")
	assert.Contains(t, doc.Links, "https://example.com/relative")
}

func TestPipelineOnlyMainContent(t *testing.T) {
	p := NewPipeline(nil)
	doc := &models.Document{FinalURL: "https://example.com/page"}
	opts := models.ScrapeOptions{OnlyMainContent: true, Formats: []models.Format{models.FormatMarkdown}}

	err := p.Run(doc, samplePage, opts)
	require.NoError(t, err)
	assert.Contains(t, doc.Markdown, "Heading")
}

func TestTextFromMarkdown(t *testing.T) {
	text := textFromMarkdown("# Title\n\nSome **bold** text.")
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "bold")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
}
