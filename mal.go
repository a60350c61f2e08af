// Package mal fetches and parses user profile pages from MyAnimeList.
//
// Basic usage:
//
//	session, err := mal.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	user, err := session.User("satou")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	joined, err := user.JoinDate(ctx)
//
// Attributes load lazily: the first accessor touching a page group fetches
// and parses that page, and later reads return the cached value. Entities
// are interned per session, so a friend discovered on one profile is the
// same *User a caller constructs directly.
//
// The site's markup is not an API. Parsing is position- and text-based and
// degrades per field by default: when one fragment changes shape, that
// field stays unset and the rest of the page still loads. WithStrictParsing
// turns any field failure into a load error instead.
package mal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/mal/auth"
	"github.com/codeGROOVE-dev/mal/htmlutil"
	"github.com/codeGROOVE-dev/mal/httpcache"
)

// DefaultBaseURL is the production MyAnimeList endpoint.
const DefaultBaseURL = "https://myanimelist.net"

// Session is the entry point to the library. It owns transport
// configuration and the identity cache that interns one entity instance per
// natural key. Safe for concurrent use.
type Session struct {
	fetcher Fetcher
	jar     http.CookieJar
	logger  *slog.Logger
	baseURL string
	strict  bool

	mu       sync.Mutex
	entities map[entityKey]any
}

type entityKey struct {
	kind Kind
	key  string
}

// Option configures a Session.
type Option func(*config)

type config struct {
	fetcher        Fetcher
	httpClient     *http.Client
	cache          httpcache.Cacher
	cookies        map[string]string
	logger         *slog.Logger
	baseURL        string
	strict         bool
	browserCookies bool
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithStrictParsing makes any field parse failure abort its group load.
// The default is permissive: failed fields stay unset and the rest of the
// page still applies.
func WithStrictParsing() Option {
	return func(c *config) { c.strict = true }
}

// WithHTTPCache sets the HTTP response cache.
func WithHTTPCache(cache httpcache.Cacher) Option {
	return func(c *config) { c.cache = cache }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithCookies sets explicit session cookie values.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithBrowserCookies enables reading session cookies from browser stores.
func WithBrowserCookies() Option {
	return func(c *config) { c.browserCookies = true }
}

// WithBaseURL overrides the site endpoint. Useful against a local mirror.
func WithBaseURL(baseURL string) Option {
	return func(c *config) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithFetcher replaces the document accessor entirely. Cookie and client
// options are ignored when a custom fetcher is set.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *config) { c.fetcher = fetcher }
}

// New creates a Session.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	cfg := &config{logger: slog.Default(), baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Session{
		fetcher:  cfg.fetcher,
		logger:   cfg.logger,
		baseURL:  cfg.baseURL,
		strict:   cfg.strict,
		entities: make(map[entityKey]any),
	}
	if s.fetcher != nil {
		return s, nil
	}

	sources := []auth.Source{auth.StaticSource{Values: cfg.cookies}, auth.EnvSource{}}
	if cfg.browserCookies {
		sources = append(sources, auth.NewBrowserSource(cfg.logger))
	}
	cookies, err := auth.Chain(ctx, sources...)
	if err != nil {
		return nil, err
	}

	client := cfg.httpClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if len(cookies) > 0 {
		jar, err := auth.NewCookieJar(cookies)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
		s.jar = jar
	}

	s.fetcher = &httpFetcher{client: client, cache: cfg.cache, logger: cfg.logger}
	return s, nil
}

// LoggedIn reports whether the session holds a site login cookie.
func (s *Session) LoggedIn() bool {
	if s.jar == nil {
		return false
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return false
	}
	for _, c := range s.jar.Cookies(u) {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

// resolve interns one entity instance per (kind, key). Concurrent calls for
// the same key return the same instance; no I/O happens here.
func resolve[T any](s *Session, kind Kind, key string, construct func() *T) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entityKey{kind: kind, key: key}
	if e, ok := s.entities[k]; ok {
		return e.(*T) //nolint:errcheck // registry stores one type per kind
	}
	e := construct()
	s.entities[k] = e
	return e
}

// User returns the user entity for a username. No fetch happens until an
// attribute is read.
func (s *Session) User(username string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &InvalidEntityError{Kind: KindUser, Key: username}
	}
	return resolve(s, KindUser, username, func() *User {
		return &User{session: s, username: username}
	}), nil
}

// Anime returns the anime entity for a numeric entry ID.
func (s *Session) Anime(id int) (*Anime, error) {
	if id < 1 {
		return nil, &InvalidEntityError{Kind: KindAnime, Key: strconv.Itoa(id)}
	}
	return resolve(s, KindAnime, strconv.Itoa(id), func() *Anime {
		return &Anime{id: id}
	}), nil
}

// Manga returns the manga entity for a numeric entry ID.
func (s *Session) Manga(id int) (*Manga, error) {
	if id < 1 {
		return nil, &InvalidEntityError{Kind: KindManga, Key: strconv.Itoa(id)}
	}
	return resolve(s, KindManga, strconv.Itoa(id), func() *Manga {
		return &Manga{id: id}
	}), nil
}

// Character returns the character entity for a numeric entry ID.
func (s *Session) Character(id int) (*Character, error) {
	if id < 1 {
		return nil, &InvalidEntityError{Kind: KindCharacter, Key: strconv.Itoa(id)}
	}
	return resolve(s, KindCharacter, strconv.Itoa(id), func() *Character {
		return &Character{id: id}
	}), nil
}

// Person returns the person entity for a numeric entry ID.
func (s *Session) Person(id int) (*Person, error) {
	if id < 1 {
		return nil, &InvalidEntityError{Kind: KindPerson, Key: strconv.Itoa(id)}
	}
	return resolve(s, KindPerson, strconv.Itoa(id), func() *Person {
		return &Person{id: id}
	}), nil
}

// Club returns the club entity for a numeric club ID.
func (s *Session) Club(id int) (*Club, error) {
	if id < 1 {
		return nil, &InvalidEntityError{Kind: KindClub, Key: strconv.Itoa(id)}
	}
	return resolve(s, KindClub, strconv.Itoa(id), func() *Club {
		return &Club{id: id}
	}), nil
}

// media resolves an entry link's kind segment into a registered Media.
func (s *Session) media(kind string, id int) (Media, error) {
	switch pathKinds[kind] {
	case KindAnime:
		return s.Anime(id)
	case KindManga:
		return s.Manga(id)
	default:
		return nil, fmt.Errorf("not a media link kind: %q", kind)
	}
}

// UsernameFromID looks up the username behind a numeric user ID. The site
// exposes the mapping on the user's comments page heading.
func (s *Session) UsernameFromID(ctx context.Context, userID int) (string, error) {
	u := s.baseURL + "/comments.php?" + url.Values{"id": {strconv.Itoa(userID)}}.Encode()
	doc, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return "", err
	}

	heading := htmlutil.CleanText(doc.Find("h1").First().Text())
	const suffix = "'s Comments"
	if !strings.Contains(heading, suffix) {
		return "", &InvalidEntityError{Kind: KindUser, Key: strconv.Itoa(userID)}
	}
	return strings.TrimSuffix(heading, suffix), nil
}
