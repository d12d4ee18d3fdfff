package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultScrapeOptions(t *testing.T) {
	o := DefaultScrapeOptions()
	assert.Equal(t, []Format{FormatMarkdown}, o.Formats)
	assert.False(t, o.NeedsJS())
}

func TestScrapeOptionsNeedsJS(t *testing.T) {
	o := DefaultScrapeOptions()
	o.WaitFor = 500
	assert.True(t, o.NeedsJS())

	o2 := DefaultScrapeOptions()
	o2.Proxy = ProxyStealth
	assert.True(t, o2.NeedsJS())

	o3 := DefaultScrapeOptions()
	o3.Formats = []Format{FormatScreenshot}
	assert.True(t, o3.NeedsJS())
}

func TestScrapeOptionsWants(t *testing.T) {
	o := ScrapeOptions{Formats: []Format{FormatMarkdown, FormatLinks, FormatExtract}, Extract: &ExtractOptions{Prompt: "summarize"}}
	assert.True(t, o.WantsLinks())
	assert.True(t, o.WantsExtract())
	assert.False(t, o.WantsScreenshot())
	assert.False(t, o.WantsHTML())
}

func TestScrapeOptionsWantsExtractRequiresOptions(t *testing.T) {
	o := ScrapeOptions{Formats: []Format{FormatExtract}}
	assert.False(t, o.WantsExtract())
}

func TestDefaultCrawlOptions(t *testing.T) {
	o := DefaultCrawlOptions()
	assert.Equal(t, 10, o.MaxDepth)
	assert.Equal(t, 10000, o.Limit)
}
