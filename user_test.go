package mal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// stubFetcher serves canned pages and counts fetches per URL. Safe for
// concurrent use.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string]string), calls: make(map[string]int)}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls[url]++
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no stub page for %s", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (f *stubFetcher) fetchCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *stubFetcher) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func newTestSession(t *testing.T, f *stubFetcher, opts ...Option) *Session {
	t.Helper()
	if f == nil {
		f = newStubFetcher()
	}
	opts = append(opts,
		WithFetcher(f),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

const sidebarHTML = `
<div class="user-profile">
<img src="https://cdn.example/images/userimages/4321.jpg">
<a href="/rss.php?type=blog&amp;id=4321">Blog Feed</a>
<ul class="user-status">
<li><span>Last Online</span> Mar 8, 2015 1:32 PM</li>
<li><span>Gender</span> Male</li>
<li><span>Birthday</span> Jan 1, 1990</li>
<li><span>Location</span> Tokyo</li>
<li><span>Joined</span> Nov 11, 2008</li>
</ul>
<ul class="user-status"></ul>
<ul class="user-status">
<li><span>Forum Posts</span> 1,234</li>
<li><span>Reviews</span> 12</li>
<li><span>Recommendations</span> 3</li>
<li><span>Blog Posts</span> 0</li>
<li><span>Clubs</span> 5</li>
</ul>
<div class="user-profile-sns"><a href="https://satou.example">satou.example</a></div>
</div>`

const statisticsHTML = `
<div id="statistics">
<div class="stats anime">
<div class="stat-score">
<div><span>Days:</span> 152.1</div>
<div><span>Mean Score:</span> 7.45</div>
</div>
<ul>
<li><a href="#">Watching</a><span>12</span></li>
<li><a href="#">Completed</a><span>455</span></li>
</ul>
<ul>
<li><span>Total Entries</span><span>501</span></li>
<li><span>Episodes</span><span>7,421</span></li>
</ul>
</div>
<div class="stats manga">
<div class="stat-score">
<div><span>Days:</span> 25.5</div>
<div><span>Mean Score:</span> 7.01</div>
</div>
<ul>
<li><a href="#">Reading</a><span>3</span></li>
</ul>
<ul>
<li><span>Total Entries</span><span>44</span></li>
</ul>
</div>
</div>`

const profileBodyHTML = `
<a href="/comments.php?id=4321">All Comments (87)</a>
<div class="user-favorites">
<div><ul>
<li><a href="/anime/467/pic"></a><a href="/anime/467/Ghost_in_the_Shell">Ghost in the Shell</a></li>
</ul></div>
<div><ul>
<li><a href="/manga/3/pic"></a><a href="/manga/3/Berserk">Berserk</a></li>
</ul></div>
<div><ul>
<li><a href="/character/12/pic"></a><a href="/character/12/Kusanagi">Motoko Kusanagi</a><a href="/anime/467/Ghost_in_the_Shell">Ghost in the Shell</a></li>
</ul></div>
<div><ul>
<li><a href="/people/40/pic"></a><a href="/people/40/Kamiyama">Kenji Kamiyama</a></li>
</ul></div>
</div>
<div class="normal_header">Last List Updates</div>
<table><tr>
<td><img></td>
<td><a href="/anime/10087/Fate_Zero">Fate/Zero</a>
<div class="spaceit_pad">Watching at 8 of 13</div>
<div class="lightLink">Mar 4, 2015 10:13 AM</div></td>
</tr></table>
<div class="profile-about-user"><div>Hello there.</div></div>`

func profilePage(withStats bool) string {
	page := "<html><body>" + sidebarHTML + profileBodyHTML
	if withStats {
		page += statisticsHTML
	}
	return page + "</body></html>"
}

func sectionPage(listing string) string {
	return "<html><body>" + sidebarHTML +
		`<div id="content"><table><tr><td>sidebar</td><td>` + listing +
		`</td></tr></table></div></body></html>`
}

func reviewHTML(href, title, date, helpful, progress string, rating int, text string) string {
	return `<div class="borderDark">
<div>
<div><div>` + date + `</div><a href="` + href + `">` + title + `</a></div>
<div><span>` + helpful + `</span></div>
<div>` + progress + `</div>
<div><div>Overall Rating: ` + fmt.Sprint(rating) + `</div></div>
</div>
<div>` + text + `<div class="spaceit">vote widget</div><a href="#">read more</a></div>
</div>`
}

func TestProfileLoadsOncePerGroup(t *testing.T) {
	f := newStubFetcher()
	profileURL := "https://myanimelist.net/profile/satou"
	f.pages[profileURL] = profilePage(true)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	joined, err := u.JoinDate(ctx)
	if err != nil {
		t.Fatalf("JoinDate: %v", err)
	}
	want := time.Date(2008, time.November, 11, 0, 0, 0, 0, time.UTC)
	if !joined.Equal(want) {
		t.Errorf("JoinDate = %v, want %v", joined, want)
	}

	// Every other profile attribute reads from cache.
	if location, err := u.Location(ctx); err != nil || location != "Tokyo" {
		t.Errorf("Location = %q, %v, want %q", location, err, "Tokyo")
	}
	if gender, err := u.Gender(ctx); err != nil || gender != "Male" {
		t.Errorf("Gender = %q, %v, want %q", gender, err, "Male")
	}
	if id, err := u.ID(ctx); err != nil || id != 4321 {
		t.Errorf("ID = %d, %v, want 4321", id, err)
	}
	if n, err := u.NumForumPosts(ctx); err != nil || n != 1234 {
		t.Errorf("NumForumPosts = %d, %v, want 1234", n, err)
	}
	if n, err := u.NumComments(ctx); err != nil || n != 87 {
		t.Errorf("NumComments = %d, %v, want 87", n, err)
	}
	if site, err := u.Website(ctx); err != nil || site != "satou.example" {
		t.Errorf("Website = %q, %v, want %q", site, err, "satou.example")
	}
	if about, err := u.About(ctx); err != nil || about != "Hello there." {
		t.Errorf("About = %q, %v, want %q", about, err, "Hello there.")
	}

	stats, err := u.AnimeStats(ctx)
	if err != nil {
		t.Fatalf("AnimeStats: %v", err)
	}
	for key, want := range map[string]float64{
		"Days": 152.1, "Mean Score": 7.45, "Watching": 12,
		"Completed": 455, "Total Entries": 501, "Episodes": 7421,
	} {
		if stats[key] != want {
			t.Errorf("AnimeStats[%q] = %v, want %v", key, stats[key], want)
		}
	}

	favorites, err := u.FavoriteAnime(ctx)
	if err != nil {
		t.Fatalf("FavoriteAnime: %v", err)
	}
	if len(favorites) != 1 || favorites[0].ID() != 467 {
		t.Fatalf("FavoriteAnime = %v, want one entry with ID 467", favorites)
	}
	if favorites[0].Title() != "Ghost in the Shell" {
		t.Errorf("favorite title = %q, want %q", favorites[0].Title(), "Ghost in the Shell")
	}
	canonical, err := s.Anime(467)
	if err != nil {
		t.Fatalf("Anime: %v", err)
	}
	if favorites[0] != canonical {
		t.Error("favorite anime is not the registered instance for its ID")
	}

	updates, err := u.LastListUpdates(ctx)
	if err != nil {
		t.Fatalf("LastListUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("LastListUpdates = %v, want one row", updates)
	}
	up := updates[0]
	if up.Media.ID() != 10087 || up.Status != "Watching" || up.Episodes != 8 || up.TotalEpisodes != 13 {
		t.Errorf("list update = %+v, want Watching 8 of 13 on entry 10087", up)
	}

	if got := f.fetchCount(profileURL); got != 1 {
		t.Errorf("profile fetched %d times, want 1", got)
	}
}

func TestProfileMissingStatisticsPermissive(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou"] = profilePage(false)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	// Sidebar fields still populate from the same document.
	if joined, err := u.JoinDate(ctx); err != nil || joined.IsZero() {
		t.Errorf("JoinDate = %v, %v, want set", joined, err)
	}
	if location, err := u.Location(ctx); err != nil || location != "Tokyo" {
		t.Errorf("Location = %q, %v, want %q", location, err, "Tokyo")
	}

	// The malformed section's fields stay unset without an error.
	if stats, err := u.AnimeStats(ctx); err != nil || stats != nil {
		t.Errorf("AnimeStats = %v, %v, want unset", stats, err)
	}
	if stats, err := u.MangaStats(ctx); err != nil || stats != nil {
		t.Errorf("MangaStats = %v, %v, want unset", stats, err)
	}
}

func TestStrictModeAllOrNothing(t *testing.T) {
	broken := strings.Replace(profilePage(true), "<li><span>Forum Posts</span> 1,234</li>",
		"<li><span>Forum Posts</span> many</li>", 1)

	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou"] = broken
	s := newTestSession(t, f, WithStrictParsing())
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	var fieldErr *FieldError
	if _, err := u.JoinDate(ctx); !errors.As(err, &fieldErr) {
		t.Fatalf("JoinDate error = %v, want FieldError", err)
	}
	if fieldErr.Field != "num_forum_posts" {
		t.Errorf("failing field = %q, want %q", fieldErr.Field, "num_forum_posts")
	}

	// No partial batch: even fields parsed before the failure stay unset.
	if _, ok := u.state.lookup("location"); ok {
		t.Error("strict failure left a partially applied batch")
	}

	// The failure is cached; a later read does not refetch.
	if _, err := u.Location(ctx); err == nil {
		t.Error("second read after strict failure returned no error")
	}
	if got := f.fetchCount("https://myanimelist.net/profile/satou"); got != 1 {
		t.Errorf("profile fetched %d times, want 1", got)
	}
}

func TestPermissiveModeSkipsBadField(t *testing.T) {
	broken := strings.Replace(profilePage(true), "<li><span>Forum Posts</span> 1,234</li>",
		"<li><span>Forum Posts</span> many</li>", 1)

	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou"] = broken
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	if n, err := u.NumForumPosts(ctx); err != nil || n != 0 {
		t.Errorf("NumForumPosts = %d, %v, want unset", n, err)
	}
	if location, err := u.Location(ctx); err != nil || location != "Tokyo" {
		t.Errorf("Location = %q, %v, want %q", location, err, "Tokyo")
	}
}

func TestReviewPagination(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou/reviews?p=0"] = sectionPage(
		reviewHTML("/anime/9760/Hoshi_wo_Ou_Kodomo", "Hoshi wo Ou Kodomo",
			"Mar 4, 2015", "12 of 14", "9 of 11", 8, "Great movie."))
	f.pages["https://myanimelist.net/profile/satou/reviews?p=1"] = sectionPage(
		reviewHTML("/manga/5/Berserk", "Berserk",
			"Feb 1, 2015", "3 of 5", "120 of ?", 9, "Long but worth it."))
	f.pages["https://myanimelist.net/profile/satou/reviews?p=2"] = sectionPage("")
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	reviews, err := u.Reviews(ctx)
	if err != nil {
		t.Fatalf("Reviews: %v", err)
	}

	if got := f.totalFetches(); got != 3 {
		t.Errorf("pagination issued %d fetches, want 3", got)
	}
	if len(reviews) != 2 {
		t.Fatalf("merged %d reviews, want 2", len(reviews))
	}

	anime, err := s.Anime(9760)
	if err != nil {
		t.Fatalf("Anime: %v", err)
	}
	review, ok := reviews[anime]
	if !ok {
		t.Fatal("review from page 0 missing from merged map")
	}
	wantDate := time.Date(2015, time.March, 4, 0, 0, 0, 0, time.UTC)
	if !review.Date.Equal(wantDate) {
		t.Errorf("review date = %v, want %v", review.Date, wantDate)
	}
	if review.Helpful != 12 || review.Voters != 14 {
		t.Errorf("helpful = %d of %d, want 12 of 14", review.Helpful, review.Voters)
	}
	if review.Consumed != 9 || review.Total != 11 {
		t.Errorf("progress = %d of %d, want 9 of 11", review.Consumed, review.Total)
	}
	if review.Rating != 8 {
		t.Errorf("rating = %d, want 8", review.Rating)
	}
	if review.Text != "Great movie." {
		t.Errorf("text = %q, want %q", review.Text, "Great movie.")
	}

	manga, err := s.Manga(5)
	if err != nil {
		t.Fatalf("Manga: %v", err)
	}
	review, ok = reviews[manga]
	if !ok {
		t.Fatal("review from page 1 missing from merged map")
	}
	if review.Consumed != 120 || review.Total != 0 {
		t.Errorf("progress = %d of %d, want 120 with unknown total", review.Consumed, review.Total)
	}

	// A second read serves the merged result without refetching.
	if _, err := u.Reviews(ctx); err != nil {
		t.Fatalf("Reviews again: %v", err)
	}
	if got := f.totalFetches(); got != 3 {
		t.Errorf("cached reviews refetched, total fetches = %d, want 3", got)
	}
}

func TestRecommendations(t *testing.T) {
	listing := `
<div class="spaceit borderClass">header row</div>
<div class="spaceit borderClass">
<table><tr>
<td><a href="/anime/64/Rozen_Maiden">Rozen Maiden</a></td>
<td><a href="/anime/2787/Gosick">Gosick</a></td>
</tr></table>
<p>Both have dolls and mysteries.</p>
<div>Anime Recommendation - Mar 4, 2015</div>
</div>`

	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou/recommendations"] = sectionPage(listing)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	recs, err := u.Recommendations(ctx)
	if err != nil {
		t.Fatalf("Recommendations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}

	liked, err := s.Anime(64)
	if err != nil {
		t.Fatalf("Anime: %v", err)
	}
	rec, ok := recs[liked]
	if !ok {
		t.Fatal("recommendation not keyed by the liked entry")
	}
	if rec.Recommended.ID() != 2787 || rec.Recommended.Title() != "Gosick" {
		t.Errorf("recommended = %d %q, want 2787 %q", rec.Recommended.ID(), rec.Recommended.Title(), "Gosick")
	}
	if rec.Text != "Both have dolls and mysteries." {
		t.Errorf("text = %q", rec.Text)
	}
	wantDate := time.Date(2015, time.March, 4, 0, 0, 0, 0, time.UTC)
	if !rec.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", rec.Date, wantDate)
	}
}

func TestClubs(t *testing.T) {
	listing := `<ol>
<li><a href="/clubs.php?cid=10178">Cooking Club</a></li>
<li><a href="/clubs.php?cid=72940">Ghost in the Shell Club</a></li>
</ol>`

	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou/clubs"] = sectionPage(listing)
	s := newTestSession(t, f)

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	clubs, err := u.Clubs(context.Background())
	if err != nil {
		t.Fatalf("Clubs: %v", err)
	}
	if len(clubs) != 2 {
		t.Fatalf("got %d clubs, want 2", len(clubs))
	}
	if clubs[0].ID() != 10178 || clubs[0].Name() != "Cooking Club" {
		t.Errorf("club = %d %q, want 10178 %q", clubs[0].ID(), clubs[0].Name(), "Cooking Club")
	}
}

func TestFriendsResolveThroughRegistry(t *testing.T) {
	listing := `
<div class="friendHolder"><div class="friendBlock">
<div><img></div>
<div><a href="/profile/accela">accela</a></div>
<div>Mar 7, 2015 1:40 PM</div>
<div>Friends since Dec 1, 2012</div>
</div></div>`

	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou/friends"] = sectionPage(listing)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	friends, err := u.Friends(ctx)
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(friends) != 1 {
		t.Fatalf("got %d friends, want 1", len(friends))
	}

	accela, err := s.User("accela")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	fs, ok := friends[accela]
	if !ok {
		t.Fatal("friend map not keyed by the registered user instance")
	}
	wantSince := time.Date(2012, time.December, 1, 0, 0, 0, 0, time.UTC)
	if !fs.Since.Equal(wantSince) {
		t.Errorf("since = %v, want %v", fs.Since, wantSince)
	}
	if fs.LastActive.IsZero() {
		t.Error("last active not parsed")
	}
}

func TestConcurrentReadsSingleFetch(t *testing.T) {
	f := newStubFetcher()
	profileURL := "https://myanimelist.net/profile/satou"
	f.pages[profileURL] = profilePage(true)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := u.JoinDate(ctx); err != nil {
				t.Errorf("JoinDate: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.fetchCount(profileURL); got != 1 {
		t.Errorf("concurrent reads issued %d fetches, want 1", got)
	}
}

func TestReloadRefetches(t *testing.T) {
	f := newStubFetcher()
	profileURL := "https://myanimelist.net/profile/satou"
	f.pages[profileURL] = profilePage(true)
	s := newTestSession(t, f)
	ctx := context.Background()

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if _, err := u.Location(ctx); err != nil {
		t.Fatalf("Location: %v", err)
	}

	f.mu.Lock()
	f.pages[profileURL] = strings.Replace(profilePage(true),
		"<li><span>Location</span> Tokyo</li>", "<li><span>Location</span> Osaka</li>", 1)
	f.mu.Unlock()

	u.Reload()
	location, err := u.Location(ctx)
	if err != nil {
		t.Fatalf("Location after reload: %v", err)
	}
	if location != "Osaka" {
		t.Errorf("Location = %q after reload, want %q", location, "Osaka")
	}
	if got := f.fetchCount(profileURL); got != 2 {
		t.Errorf("profile fetched %d times, want 2", got)
	}
}

func TestNonexistentUser(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/ghost"] = `<html><body><div class="error404">404 Not Found</div></body></html>`
	s := newTestSession(t, f)

	u, err := s.User("ghost")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	var invalid *InvalidEntityError
	if _, err := u.JoinDate(context.Background()); !errors.As(err, &invalid) {
		t.Errorf("error = %v, want InvalidEntityError", err)
	}
}

func TestMalformedProfilePage(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou"] = `<html><body><p>maintenance</p></body></html>`
	s := newTestSession(t, f)

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	var malformed *MalformedPageError
	if _, err := u.JoinDate(context.Background()); !errors.As(err, &malformed) {
		t.Errorf("error = %v, want MalformedPageError", err)
	}
}

func TestTitleHintThenLoadPrecedence(t *testing.T) {
	f := newStubFetcher()
	f.pages["https://myanimelist.net/profile/satou"] = profilePage(true)
	s := newTestSession(t, f)
	ctx := context.Background()

	anime, err := s.Anime(467)
	if err != nil {
		t.Fatalf("Anime: %v", err)
	}
	anime.setTitleHint("old working title")

	u, err := s.User("satou")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if _, err := u.FavoriteAnime(ctx); err != nil {
		t.Fatalf("FavoriteAnime: %v", err)
	}

	// Profile parsing only re-hints the title, so the first hint stands.
	if anime.Title() != "old working title" {
		t.Errorf("Title = %q, want the original hint", anime.Title())
	}
}
