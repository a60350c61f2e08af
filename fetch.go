package mal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/mal/httpcache"
)

// Fetcher turns a URL into a parsed document. Implementations own all
// transport concerns: timeouts, retries, caching, authentication. The rest
// of the library only sees documents.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

type httpFetcher struct {
	client *http.Client
	cache  httpcache.Cacher
	logger *slog.Logger
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	f.logger.InfoContext(ctx, "fetching page", "url", rawURL)

	body, err := httpcache.FetchURL(ctx, f.cache, f.client, req, f.logger)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// profileURL builds the deterministic page URL for a user's profile or one
// of its sections. Reviews take a zero-based page number; every other
// section ignores it.
func (s *Session) profileURL(username, section string, page int) string {
	u := s.baseURL + "/profile/" + url.PathEscape(username)
	if section != "" {
		u += "/" + section
	}
	if section == "reviews" {
		u += "?p=" + strconv.Itoa(page)
	}
	return u
}
