package content

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// MarkdownConverter wraps html-to-markdown. Convert returns an error when
// conversion errors out or produces empty output for non-empty input; the
// plain tag-strip fallback the teacher's transform service uses is applied
// by the caller (Pipeline.Run's stripTags), not here.
type MarkdownConverter struct{}

func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{}
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

func (c *MarkdownConverter) Convert(html, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	converter := md.NewConverter(baseURL, true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("html-to-markdown: %w", err)
	}

	out = strings.TrimSpace(excessBlankLines.ReplaceAllString(out, "\n\n"))
	if out == "" {
		return "", fmt.Errorf("html-to-markdown: empty output for non-empty input")
	}
	return out, nil
}
