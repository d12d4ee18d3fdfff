package models

// ProxyMode selects the fetcher-routing policy for a scrape.
type ProxyMode string

const (
	ProxyNone    ProxyMode = "none"
	ProxyBasic   ProxyMode = "basic"
	ProxyStealth ProxyMode = "stealth"
)

// Format is one entry of ScrapeOptions.Formats.
type Format string

const (
	FormatMarkdown   Format = "markdown"
	FormatHTML       Format = "html"
	FormatRawHTML    Format = "rawHtml"
	FormatLinks      Format = "links"
	FormatScreenshot Format = "screenshot"
	FormatExtract    Format = "extract"
)

// ExtractOptions configures the opaque extract(text, schema) -> object call.
type ExtractOptions struct {
	Schema       map[string]interface{} `json:"schema,omitempty"`
	Prompt       string                  `json:"prompt,omitempty"`
	SystemPrompt string                  `json:"systemPrompt,omitempty"`
}

// ScrapeOptions is the closed option bag for fetching and transforming one URL.
// It is decoded and validated at the HTTP boundary; components never see an
// unvalidated instance.
type ScrapeOptions struct {
	Formats             []Format          `json:"formats,omitempty" validate:"dive,oneof=markdown html rawHtml links screenshot extract"`
	OnlyMainContent     bool              `json:"onlyMainContent"`
	IncludeTags         []string          `json:"includeTags,omitempty"`
	ExcludeTags         []string          `json:"excludeTags,omitempty"`
	WaitFor             int               `json:"waitFor,omitempty" validate:"min=0,max=60000"`
	Timeout             int               `json:"timeout,omitempty" validate:"min=0,max=300000"`
	Headers             map[string]string `json:"headers,omitempty"`
	Mobile              bool              `json:"mobile,omitempty"`
	SkipTLSVerification bool              `json:"skipTlsVerification,omitempty"`
	RemoveBase64Images  bool              `json:"removeBase64Images,omitempty"`
	BlockAds            bool              `json:"blockAds,omitempty"`
	Proxy               ProxyMode         `json:"proxy,omitempty" validate:"omitempty,oneof=none basic stealth"`
	Extract             *ExtractOptions   `json:"extract,omitempty"`
}

// DefaultScrapeOptions returns the option bag applied when a caller supplies none.
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		Formats: []Format{FormatMarkdown},
		Timeout: 30000,
		Proxy:   ProxyNone,
	}
}

// NeedsJS reports whether the effective options force starting past PlainHttp.
func (o ScrapeOptions) NeedsJS() bool {
	if o.WaitFor > 0 || o.Proxy != ProxyNone && o.Proxy != "" {
		return true
	}
	for _, f := range o.Formats {
		if f == FormatScreenshot {
			return true
		}
	}
	return false
}

func (o ScrapeOptions) wantsFormat(f Format) bool {
	for _, got := range o.Formats {
		if got == f {
			return true
		}
	}
	return false
}

func (o ScrapeOptions) WantsExtract() bool    { return o.wantsFormat(FormatExtract) && o.Extract != nil }
func (o ScrapeOptions) WantsScreenshot() bool { return o.wantsFormat(FormatScreenshot) }
func (o ScrapeOptions) WantsRawHTML() bool    { return o.wantsFormat(FormatRawHTML) }
func (o ScrapeOptions) WantsHTML() bool       { return o.wantsFormat(FormatHTML) }
func (o ScrapeOptions) WantsLinks() bool      { return o.wantsFormat(FormatLinks) }

// CrawlOptions is the closed option bag for a multi-page crawl rooted at one URL.
type CrawlOptions struct {
	MaxDepth           int           `json:"maxDepth" validate:"min=0"`
	Limit              int           `json:"limit" validate:"min=1"`
	IncludePaths       []string      `json:"includePaths,omitempty"`
	ExcludePaths       []string      `json:"excludePaths,omitempty"`
	AllowBackwardLinks bool          `json:"allowBackwardLinks,omitempty"`
	AllowExternalLinks bool          `json:"allowExternalLinks,omitempty"`
	IgnoreSitemap      bool          `json:"ignoreSitemap,omitempty"`
	ScrapeOptions      ScrapeOptions `json:"scrapeOptions,omitempty"`
}

// DefaultCrawlOptions returns the option bag applied when a caller supplies none.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		MaxDepth:      10,
		Limit:         10000,
		ScrapeOptions: DefaultScrapeOptions(),
	}
}
