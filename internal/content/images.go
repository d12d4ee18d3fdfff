package content

import "regexp"

var dataImageTag = regexp.MustCompile(`(?i)<img\b[^>]*\s(?:src|data-src)="data:image/[a-zA-Z+.-]+;base64,[^"]*"[^>]*>`)

// stripBase64Images removes every <img> element whose src or data-src is
// an inline base64-encoded image, so the serialized HTML and derived
// markdown don't carry megabytes of encoded binary. Rendering-fidelity
// image rehosting is out of scope; this step only deletes, it never
// fetches or rewrites to a stored copy.
func stripBase64Images(html string) string {
	return dataImageTag.ReplaceAllString(html, "")
}
