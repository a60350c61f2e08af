// Package auth manages MyAnimeList session cookies. Logged-in sessions see
// content that anonymous ones do not (flagged favorites, private-ish lists),
// so cookies can be supplied statically, from environment variables, or
// lifted from a local browser's cookie store.
package auth

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// Domain is the cookie domain for all sources in this package.
const Domain = "myanimelist.net"

// SessionCookie is the cookie that marks a logged-in session.
const SessionCookie = "MALSESSIONID"

// essentialCookies are the cookies worth keeping from a browser store.
var essentialCookies = []string{SessionCookie, "MALHLOGSESSID", "is_logged_in"}

// Source represents a source of session cookies.
type Source interface {
	// Cookies returns session cookies, or nil if this source has none.
	Cookies(ctx context.Context) (map[string]string, error)
}

// Chain returns cookies from the first source that provides any.
func Chain(ctx context.Context, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		cookies, err := src.Cookies(ctx)
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil //nolint:nilnil // no source had cookies, but this is not an error
}

// NewCookieJar creates an http.CookieJar populated with the given cookies.
func NewCookieJar(cookies map[string]string) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse("https://" + Domain)
	if err != nil {
		return nil, err
	}

	var httpCookies []*http.Cookie
	for name, value := range cookies {
		if value != "" {
			httpCookies = append(httpCookies, &http.Cookie{
				Name:   name,
				Value:  value,
				Domain: "." + Domain,
				Path:   "/",
			})
		}
	}

	jar.SetCookies(u, httpCookies)
	return jar, nil
}

// StaticSource returns a fixed cookie map.
type StaticSource struct {
	Values map[string]string
}

// Cookies returns the static cookie values.
func (s StaticSource) Cookies(_ context.Context) (map[string]string, error) {
	if len(s.Values) == 0 {
		return nil, nil //nolint:nilnil // empty static source is not an error
	}
	return s.Values, nil
}
