package content

import "github.com/PuerkitoBio/goquery"

// applyTagFilters removes excludeTags selectors first, then — if
// includeTags is non-empty — replaces the document body with only the
// matched elements. Mirrors the teacher's convertToMarkdown tag stripping
// (script/style/nav/footer/aside) generalized to caller-supplied selectors.
func applyTagFilters(doc *goquery.Document, includeTags, excludeTags []string) {
	doc.Find("script, style, noscript").Remove()

	for _, sel := range excludeTags {
		if sel == "" {
			continue
		}
		doc.Find(sel).Remove()
	}

	if len(includeTags) == 0 {
		return
	}

	var matched []*goquery.Selection
	for _, sel := range includeTags {
		if sel == "" {
			continue
		}
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			matched = append(matched, s)
		})
	}
	if len(matched) == 0 {
		return
	}

	body := doc.Find("body")
	body.Contents().Remove()
	for _, m := range matched {
		body.AppendSelection(m)
	}
}
