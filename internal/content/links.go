package content

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resolveURLs rewrites every href/src in the document to an absolute URL
// resolved against base, so downstream markdown/link extraction never sees
// a relative reference.
func resolveURLs(doc *goquery.Document, base *url.URL) {
	resolveAttr(doc, "a[href]", "href", base)
	resolveAttr(doc, "img[src]", "src", base)
	resolveAttr(doc, "link[href]", "href", base)
}

func resolveAttr(doc *goquery.Document, selector, attr string, base *url.URL) {
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		val, ok := s.Attr(attr)
		if !ok || val == "" {
			return
		}
		if strings.HasPrefix(val, "javascript:") || strings.HasPrefix(val, "mailto:") || strings.HasPrefix(val, "data:") {
			return
		}
		ref, err := url.Parse(val)
		if err != nil {
			return
		}
		s.SetAttr(attr, base.ResolveReference(ref).String())
	})
}

// extractLinks collects deduplicated, already-absolute anchor hrefs.
func extractLinks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}
