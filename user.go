package mal

import (
	"context"
	"fmt"
	"time"
)

// User is the primary interface to user resources on the site. Attributes
// are grouped by the page that backs them; reading any attribute loads its
// whole group once and caches it for the entity's lifetime.
type User struct {
	session  *Session
	username string
	state    attrStore
}

// Kind returns KindUser.
func (*User) Kind() Kind { return KindUser }

// Username returns the natural key this entity was resolved with.
func (u *User) Username() string { return u.username }

// Review is one review the user wrote for an entry.
type Review struct {
	Date     time.Time
	Text     string
	Helpful  int // voters who found the review helpful
	Voters   int
	Consumed int // episodes watched or chapters read when reviewing
	Total    int // 0 when the site shows "?"
	Rating   int
}

// Recommendation pairs an entry the user liked with the one they recommend
// because of it.
type Recommendation struct {
	Recommended Media
	Text        string
	Date        time.Time
}

// ListUpdate is one row of the user's recent list activity.
type ListUpdate struct {
	Media         Media
	Status        string
	Episodes      int // 0 when the site reports no progress
	TotalEpisodes int
	Time          time.Time
}

// CharacterFavorite pairs a favorite character with the entry they
// appear in.
type CharacterFavorite struct {
	Character *Character
	Media     Media
}

// Friendship holds the metadata the friends page shows for one friend.
type Friendship struct {
	LastActive time.Time
	Since      time.Time
}

// userAttrGroups maps every user attribute to the page group that loads it.
var userAttrGroups = map[string]group{
	"id":                  groupProfile,
	"picture":             groupProfile,
	"favorite_anime":      groupProfile,
	"favorite_manga":      groupProfile,
	"favorite_characters": groupProfile,
	"favorite_people":     groupProfile,
	"last_online":         groupProfile,
	"gender":              groupProfile,
	"birthday":            groupProfile,
	"location":            groupProfile,
	"website":             groupProfile,
	"join_date":           groupProfile,
	"num_comments":        groupProfile,
	"num_forum_posts":     groupProfile,
	"num_reviews":         groupProfile,
	"num_recommendations": groupProfile,
	"num_blog_posts":      groupProfile,
	"num_clubs":           groupProfile,
	"last_list_updates":   groupProfile,
	"about":               groupProfile,
	"anime_stats":         groupProfile,
	"manga_stats":         groupProfile,
	"reviews":             groupReviews,
	"recommendations":     groupRecommendations,
	"clubs":               groupClubs,
	"friends":             groupFriends,
}

// attr returns the named attribute, loading its group on first access. An
// attribute that stayed unset after a permissive load comes back as nil.
func (u *User) attr(ctx context.Context, name string) (any, error) {
	g, ok := userAttrGroups[name]
	if !ok {
		return nil, fmt.Errorf("unknown user attribute %q", name)
	}
	if v, ok := u.state.lookup(name); ok {
		return v, nil
	}
	if err := u.state.load(ctx, g, u.loader(g)); err != nil {
		return nil, err
	}
	v, _ := u.state.lookup(name) //nolint:errcheck // unset is a valid outcome
	return v, nil
}

func (u *User) loader(g group) func(context.Context) (fragment, error) {
	switch g {
	case groupReviews:
		return u.loadReviews
	case groupRecommendations:
		return u.loadRecommendations
	case groupClubs:
		return u.loadClubs
	case groupFriends:
		return u.loadFriends
	default:
		return u.loadProfile
	}
}

// Reload forgets all loaded state so the next attribute read refetches its
// page and overwrites cached values.
func (u *User) Reload() {
	u.state.reset()
}

func (u *User) loadProfile(ctx context.Context) (fragment, error) {
	doc, err := u.session.fetcher.Fetch(ctx, u.session.profileURL(u.username, "", 0))
	if err != nil {
		return nil, err
	}
	return u.parseProfile(doc)
}

// loadReviews walks the paged review listing: page 0, 1, 2, ... until a
// page yields no reviews. All pages merge into one map and apply as a
// single batch; a duplicate entry key takes the later page's review.
func (u *User) loadReviews(ctx context.Context) (fragment, error) {
	merged := make(map[Media]Review)
	var frag fragment
	for page := 0; ; page++ {
		doc, err := u.session.fetcher.Fetch(ctx, u.session.profileURL(u.username, "reviews", page))
		if err != nil {
			return nil, err
		}
		parsed, err := u.parseReviews(doc)
		if err != nil {
			return nil, err
		}
		if page == 0 {
			frag = parsed
		}
		pageReviews, ok := parsed["reviews"].(map[Media]Review)
		if !ok || len(pageReviews) == 0 {
			break
		}
		for media, review := range pageReviews {
			merged[media] = review
		}
	}
	if _, ok := frag["reviews"]; ok {
		frag["reviews"] = merged
	}
	return frag, nil
}

func (u *User) loadRecommendations(ctx context.Context) (fragment, error) {
	doc, err := u.session.fetcher.Fetch(ctx, u.session.profileURL(u.username, "recommendations", 0))
	if err != nil {
		return nil, err
	}
	return u.parseRecommendations(doc)
}

func (u *User) loadClubs(ctx context.Context) (fragment, error) {
	doc, err := u.session.fetcher.Fetch(ctx, u.session.profileURL(u.username, "clubs", 0))
	if err != nil {
		return nil, err
	}
	return u.parseClubs(doc)
}

func (u *User) loadFriends(ctx context.Context) (fragment, error) {
	doc, err := u.session.fetcher.Fetch(ctx, u.session.profileURL(u.username, "friends", 0))
	if err != nil {
		return nil, err
	}
	return u.parseFriends(doc)
}

// userAttr loads and type-asserts one attribute. An unset attribute comes
// back as the zero value with a nil error.
func userAttr[T any](ctx context.Context, u *User, name string) (T, error) {
	var zero T
	v, err := u.attr(ctx, name)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("attribute %q holds %T", name, v)
	}
	return t, nil
}

// ID returns the user's numeric site ID.
func (u *User) ID(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "id")
}

// Picture returns the profile image URL.
func (u *User) Picture(ctx context.Context) (string, error) {
	return userAttr[string](ctx, u, "picture")
}

// FavoriteAnime returns the user's favorite anime entries.
func (u *User) FavoriteAnime(ctx context.Context) ([]*Anime, error) {
	return userAttr[[]*Anime](ctx, u, "favorite_anime")
}

// FavoriteManga returns the user's favorite manga entries.
func (u *User) FavoriteManga(ctx context.Context) ([]*Manga, error) {
	return userAttr[[]*Manga](ctx, u, "favorite_manga")
}

// FavoriteCharacters returns the user's favorite characters, each with the
// entry they appear in.
func (u *User) FavoriteCharacters(ctx context.Context) ([]CharacterFavorite, error) {
	return userAttr[[]CharacterFavorite](ctx, u, "favorite_characters")
}

// FavoritePeople returns the user's favorite industry people.
func (u *User) FavoritePeople(ctx context.Context) ([]*Person, error) {
	return userAttr[[]*Person](ctx, u, "favorite_people")
}

// LastOnline returns when the user was last active on the site.
func (u *User) LastOnline(ctx context.Context) (time.Time, error) {
	return userAttr[time.Time](ctx, u, "last_online")
}

// Gender returns the user's gender, "Not specified" when hidden.
func (u *User) Gender(ctx context.Context) (string, error) {
	return userAttr[string](ctx, u, "gender")
}

// Birthday returns the user's birthday. Users who hide the year get a
// zero-year date.
func (u *User) Birthday(ctx context.Context) (time.Time, error) {
	return userAttr[time.Time](ctx, u, "birthday")
}

// Location returns the user's free-form location string.
func (u *User) Location(ctx context.Context) (string, error) {
	return userAttr[string](ctx, u, "location")
}

// Website returns the external site the user links to.
func (u *User) Website(ctx context.Context) (string, error) {
	return userAttr[string](ctx, u, "website")
}

// JoinDate returns when the user registered.
func (u *User) JoinDate(ctx context.Context) (time.Time, error) {
	return userAttr[time.Time](ctx, u, "join_date")
}

// NumComments returns the number of profile comments the user has received.
func (u *User) NumComments(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_comments")
}

// NumForumPosts returns the user's forum post count.
func (u *User) NumForumPosts(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_forum_posts")
}

// NumReviews returns the user's review count.
func (u *User) NumReviews(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_reviews")
}

// NumRecommendations returns the user's recommendation count.
func (u *User) NumRecommendations(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_recommendations")
}

// NumBlogPosts returns the user's blog post count.
func (u *User) NumBlogPosts(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_blog_posts")
}

// NumClubs returns the number of clubs the user belongs to.
func (u *User) NumClubs(ctx context.Context) (int, error) {
	return userAttr[int](ctx, u, "num_clubs")
}

// LastListUpdates returns the user's recent list activity.
func (u *User) LastListUpdates(ctx context.Context) ([]ListUpdate, error) {
	return userAttr[[]ListUpdate](ctx, u, "last_list_updates")
}

// About returns the user's self-written bio, "" when absent.
func (u *User) About(ctx context.Context) (string, error) {
	return userAttr[string](ctx, u, "about")
}

// AnimeStats returns the user's anime statistics keyed by the site's
// labels: "Days", "Mean Score", "Watching", "Completed", "Total Entries",
// and so on.
func (u *User) AnimeStats(ctx context.Context) (map[string]float64, error) {
	return userAttr[map[string]float64](ctx, u, "anime_stats")
}

// MangaStats returns the user's manga statistics, keyed like AnimeStats.
func (u *User) MangaStats(ctx context.Context) (map[string]float64, error) {
	return userAttr[map[string]float64](ctx, u, "manga_stats")
}

// Reviews returns every review the user has written, keyed by the reviewed
// entry. Loading walks all pages of the review listing.
func (u *User) Reviews(ctx context.Context) (map[Media]Review, error) {
	return userAttr[map[Media]Review](ctx, u, "reviews")
}

// Recommendations returns the user's recommendations, keyed by the liked
// entry.
func (u *User) Recommendations(ctx context.Context) (map[Media]Recommendation, error) {
	return userAttr[map[Media]Recommendation](ctx, u, "recommendations")
}

// Clubs returns the clubs the user belongs to.
func (u *User) Clubs(ctx context.Context) ([]*Club, error) {
	return userAttr[[]*Club](ctx, u, "clubs")
}

// Friends returns the user's friends with friendship metadata. Friend
// entities are interned, so they are the same instances Session.User
// returns for those usernames.
func (u *User) Friends(ctx context.Context) (map[*User]Friendship, error) {
	return userAttr[map[*User]Friendship](ctx, u, "friends")
}
