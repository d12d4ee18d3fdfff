package models

import "time"

// Document is the result of processing one URL: fetch + transform. Invariant:
// if Error is set, Markdown and HTML may be absent; otherwise Markdown is
// always present.
type Document struct {
	ID         string    `json:"id"`
	SourceURL  string    `json:"sourceUrl"`
	FinalURL   string    `json:"finalUrl"`
	StatusCode int       `json:"statusCode"`
	FetchedAt  time.Time `json:"fetchedAt"`

	RawHTML  string `json:"rawHtml,omitempty"`
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Text     string `json:"text,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`

	Links    []string          `json:"links,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	Screenshot []byte                 `json:"screenshot,omitempty"`
	Extract    map[string]interface{} `json:"extract,omitempty"`

	Error *Error `json:"error,omitempty"`
}

// Succeeded reports whether the document carries no fetch/transform error.
func (d *Document) Succeeded() bool {
	return d != nil && d.Error == nil
}
