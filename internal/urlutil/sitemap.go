package urlutil

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// sitemapIndex is the <sitemapindex> root: a sitemap of sitemaps, each
// naming a child sitemap to fetch in turn. Grounded on the
// SitemapIndex/SitemapEntry shape used elsewhere in the example pack for
// exactly this purpose.
type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// urlSet is the <urlset> root: a flat list of page URLs.
type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// DefaultSitemapURL returns the conventional sitemap.xml location at the
// given root URL's site root, regardless of the root's own path.
func DefaultSitemapURL(rootURL string) (string, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return "", fmt.Errorf("parse root url: %w", err)
	}
	out := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/sitemap.xml"}
	return out.String(), nil
}

// FetchSitemapURLs fetches sitemapURL and returns every page URL it names.
// A sitemap index is resolved one level deep, fetching each child sitemap
// it references; a sitemap that fails to fetch or parse is skipped rather
// than aborting the others. Returns an error only when sitemapURL itself
// could not be fetched or parsed as either shape.
func FetchSitemapURLs(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	body, err := fetchSitemapBody(ctx, client, sitemapURL)
	if err != nil {
		return nil, err
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		var urls []string
		for _, s := range idx.Sitemaps {
			if s.Loc == "" {
				continue
			}
			child, err := fetchSitemapBody(ctx, client, s.Loc)
			if err != nil {
				continue
			}
			var set urlSet
			if err := xml.Unmarshal(child, &set); err != nil {
				continue
			}
			urls = append(urls, locsOf(set)...)
		}
		return urls, nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return locsOf(set), nil
}

func locsOf(set urlSet) []string {
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls
}

func fetchSitemapBody(ctx context.Context, client *http.Client, sitemapURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new sitemap request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap %s returned status %d", sitemapURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
