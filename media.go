package mal

// Kind identifies what a registry key refers to.
type Kind string

// The closed set of entity kinds the registry resolves.
const (
	KindUser      Kind = "user"
	KindAnime     Kind = "anime"
	KindManga     Kind = "manga"
	KindCharacter Kind = "character"
	KindPerson    Kind = "person"
	KindClub      Kind = "club"
)

// pathKinds maps entry-link path segments to registry kinds.
var pathKinds = map[string]Kind{
	"anime":     KindAnime,
	"manga":     KindManga,
	"character": KindCharacter,
	"people":    KindPerson,
}

// Media is a reference to an anime or manga entry discovered on a parsed
// page. The registry hands out one instance per (kind, id), so two Media
// values refer to the same entry exactly when they are the same pointer.
type Media interface {
	Kind() Kind
	ID() int
	// Title returns the display title captured when this entry was last
	// seen on a page, or "" for an entry nothing has referenced yet.
	Title() string
}

// Anime is an anime entry. Only its identity and display title are
// populated by this package; entry pages have their own loaders elsewhere.
type Anime struct {
	id    int
	state attrStore
}

// Kind returns KindAnime.
func (*Anime) Kind() Kind { return KindAnime }

// ID returns the entry's numeric site ID.
func (a *Anime) ID() int { return a.id }

// Title returns the captured display title, or "".
func (a *Anime) Title() string { return titleOf(&a.state) }

func (a *Anime) setTitleHint(t string) { hintTitle(&a.state, t) }

// Manga is a manga entry.
type Manga struct {
	id    int
	state attrStore
}

// Kind returns KindManga.
func (*Manga) Kind() Kind { return KindManga }

// ID returns the entry's numeric site ID.
func (m *Manga) ID() int { return m.id }

// Title returns the captured display title, or "".
func (m *Manga) Title() string { return titleOf(&m.state) }

func (m *Manga) setTitleHint(t string) { hintTitle(&m.state, t) }

// Character is a character entry.
type Character struct {
	id    int
	state attrStore
}

// Kind returns KindCharacter.
func (*Character) Kind() Kind { return KindCharacter }

// ID returns the entry's numeric site ID.
func (c *Character) ID() int { return c.id }

// Name returns the captured display name, or "".
func (c *Character) Name() string { return titleOf(&c.state) }

func (c *Character) setTitleHint(t string) { hintTitle(&c.state, t) }

// Person is a voice actor, director, or other industry person entry.
type Person struct {
	id    int
	state attrStore
}

// Kind returns KindPerson.
func (*Person) Kind() Kind { return KindPerson }

// ID returns the entry's numeric site ID.
func (p *Person) ID() int { return p.id }

// Name returns the captured display name, or "".
func (p *Person) Name() string { return titleOf(&p.state) }

func (p *Person) setTitleHint(t string) { hintTitle(&p.state, t) }

// Club is a site club.
type Club struct {
	id    int
	state attrStore
}

// Kind returns KindClub.
func (*Club) Kind() Kind { return KindClub }

// ID returns the club's numeric site ID.
func (c *Club) ID() int { return c.id }

// Name returns the captured club name, or "".
func (c *Club) Name() string { return titleOf(&c.state) }

func (c *Club) setTitleHint(t string) { hintTitle(&c.state, t) }

func titleOf(st *attrStore) string {
	v, ok := st.lookup("title")
	if !ok {
		return ""
	}
	t, _ := v.(string) //nolint:errcheck // only strings are ever stored
	return t
}

func hintTitle(st *attrStore, t string) {
	if t == "" {
		return
	}
	st.apply(fragment{"title": t}, srcHint)
}
