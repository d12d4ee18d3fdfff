package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractTitle tries <title>, then Open Graph, then <h1>, then Twitter Card.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if tw, ok := doc.Find("meta[name='twitter:title']").Attr("content"); ok && strings.TrimSpace(tw) != "" {
		return strings.TrimSpace(tw)
	}
	return ""
}

// extractMetadata returns the page description plus a flat string map of
// everything else worth keeping: canonical URL, author, OG/Twitter tags.
func extractMetadata(doc *goquery.Document) (description string, metadata map[string]string) {
	metadata = make(map[string]string)

	if d, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		description = strings.TrimSpace(d)
	}
	if author, ok := doc.Find("meta[name='author']").Attr("content"); ok {
		metadata["author"] = strings.TrimSpace(author)
	}
	if canonical, ok := doc.Find("link[rel='canonical']").Attr("href"); ok {
		metadata["canonicalUrl"] = canonical
	}

	doc.Find("meta[property^='og:']").Each(func(_ int, s *goquery.Selection) {
		prop, ok := s.Attr("property")
		if !ok {
			return
		}
		if content, ok := s.Attr("content"); ok {
			metadata[prop] = content
		}
	})
	doc.Find("meta[name^='twitter:']").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok {
			return
		}
		if content, ok := s.Attr("content"); ok {
			metadata[name] = content
		}
	})

	return description, metadata
}
