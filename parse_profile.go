package mal

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/mal/htmlutil"
)

var (
	commentCountPattern = regexp.MustCompile(`\((\d+)\)`)
	progressPattern     = regexp.MustCompile(`^([A-Za-z]+)( at ([0-9]+) of ([0-9]+))?`)
)

// parseProfile extracts everything the main profile page shows: the shared
// sidebar plus comment count, favorites, recent list updates, statistics,
// and the about section.
func (u *User) parseProfile(doc *goquery.Document) (fragment, error) {
	frag, err := u.parseSidebar(doc)
	if err != nil {
		return nil, err
	}

	if err := u.setField(frag, "num_comments", func() (any, error) {
		link := doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.Contains(a.Text(), "All Comments")
		}).First()
		m := commentCountPattern.FindStringSubmatch(link.Text())
		if m == nil {
			return nil, errMissing("comment count")
		}
		return htmlutil.Int(m[1])
	}); err != nil {
		return nil, err
	}

	if err := u.parseFavorites(doc, frag); err != nil {
		return nil, err
	}

	if err := u.setField(frag, "last_list_updates", func() (any, error) {
		return u.extractListUpdates(doc)
	}); err != nil {
		return nil, err
	}

	stats := doc.Find("#statistics").First()
	if err := u.setField(frag, "anime_stats", func() (any, error) {
		return extractStats(stats.Find("div.stats.anime").First())
	}); err != nil {
		return nil, err
	}
	if err := u.setField(frag, "manga_stats", func() (any, error) {
		return extractStats(stats.Find("div.stats.manga").First())
	}); err != nil {
		return nil, err
	}

	if err := u.setField(frag, "about", func() (any, error) {
		about := doc.Find("div.profile-about-user").First()
		if about.Length() == 0 {
			return "", nil
		}
		return strings.TrimSpace(about.Find("div").First().Text()), nil
	}); err != nil {
		return nil, err
	}

	return frag, nil
}

// parseFavorites walks the four fixed favorites sections in page order:
// anime, manga, characters, people.
func (u *User) parseFavorites(doc *goquery.Document, frag fragment) error {
	favorites := doc.Find("div.user-favorites").First()
	if favorites.Length() == 0 {
		return nil
	}
	sections := favorites.ChildrenFiltered("div")

	if err := u.setField(frag, "favorite_anime", func() (any, error) {
		anime := []*Anime{}
		err := eachFavorite(sections.Eq(0), func(link *goquery.Selection) error {
			entry, err := u.favoriteMediaLink(link)
			if err != nil {
				return err
			}
			a, ok := entry.(*Anime)
			if !ok {
				return errors.New("favorite is not an anime link")
			}
			anime = append(anime, a)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return anime, nil
	}); err != nil {
		return err
	}

	if err := u.setField(frag, "favorite_manga", func() (any, error) {
		manga := []*Manga{}
		err := eachFavorite(sections.Eq(1), func(link *goquery.Selection) error {
			entry, err := u.favoriteMediaLink(link)
			if err != nil {
				return err
			}
			m, ok := entry.(*Manga)
			if !ok {
				return errors.New("favorite is not a manga link")
			}
			manga = append(manga, m)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return manga, nil
	}); err != nil {
		return err
	}

	if err := u.setField(frag, "favorite_characters", func() (any, error) {
		characters := []CharacterFavorite{}
		var ferr error
		sections.Eq(2).Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			links := li.Find("a")
			charLink := links.Eq(1)
			href, ok := charLink.Attr("href")
			if !ok {
				ferr = errMissing("character link")
				return false
			}
			_, id, err := htmlutil.MediaPath(href)
			if err != nil {
				ferr = err
				return false
			}
			char, err := u.session.Character(id)
			if err != nil {
				ferr = err
				return false
			}
			char.setTitleHint(htmlutil.CleanText(charLink.Text()))

			entry, err := u.favoriteMediaLink(links.Eq(2))
			if err != nil {
				ferr = err
				return false
			}
			characters = append(characters, CharacterFavorite{Character: char, Media: entry})
			return true
		})
		if ferr != nil {
			return nil, ferr
		}
		return characters, nil
	}); err != nil {
		return err
	}

	return u.setField(frag, "favorite_people", func() (any, error) {
		people := []*Person{}
		err := eachFavorite(sections.Eq(3), func(link *goquery.Selection) error {
			href, ok := link.Attr("href")
			if !ok {
				return errMissing("person link")
			}
			_, id, err := htmlutil.MediaPath(href)
			if err != nil {
				return err
			}
			p, err := u.session.Person(id)
			if err != nil {
				return err
			}
			p.setTitleHint(htmlutil.CleanText(link.Text()))
			people = append(people, p)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return people, nil
	})
}

// eachFavorite visits the second link of each list item, the one carrying
// the entry title. The first link wraps the thumbnail.
func eachFavorite(section *goquery.Selection, fn func(link *goquery.Selection) error) error {
	var ferr error
	section.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		ferr = fn(li.Find("a").Eq(1))
		return ferr == nil
	})
	return ferr
}

// favoriteMediaLink resolves an entry link into a registered Media with
// its display title hinted.
func (u *User) favoriteMediaLink(link *goquery.Selection) (Media, error) {
	href, ok := link.Attr("href")
	if !ok {
		return nil, errMissing("entry link")
	}
	kind, id, err := htmlutil.MediaPath(href)
	if err != nil {
		return nil, err
	}
	entry, err := u.session.media(kind, id)
	if err != nil {
		return nil, err
	}
	hintMediaTitle(entry, htmlutil.CleanText(link.Text()))
	return entry, nil
}

func hintMediaTitle(m Media, title string) {
	switch e := m.(type) {
	case *Anime:
		e.setTitleHint(title)
	case *Manga:
		e.setTitleHint(title)
	}
}

// extractListUpdates reads the "Last List Updates" table next to its
// section heading.
func (u *User) extractListUpdates(doc *goquery.Document) ([]ListUpdate, error) {
	heading := doc.Find("div.normal_header").FilterFunction(func(_ int, h *goquery.Selection) bool {
		return strings.Contains(h.Text(), "Last List Updates")
	}).First()
	if heading.Length() == 0 {
		return nil, errMissing("list updates heading")
	}
	table := heading.NextAllFiltered("table").First()
	updates := []ListUpdate{}
	if table.Length() == 0 {
		return updates, nil
	}

	var ferr error
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		info := row.Find("td").Eq(1)
		entry, err := u.favoriteMediaLink(info.Find("a").First())
		if err != nil {
			ferr = err
			return false
		}

		update := ListUpdate{Media: entry}
		if progress := info.Find("div.spaceit_pad").First(); progress.Length() > 0 {
			m := progressPattern.FindStringSubmatch(htmlutil.CleanText(progress.Text()))
			if m == nil {
				ferr = errMissing("list update progress")
				return false
			}
			update.Status = m[1]
			if m[3] != "" {
				if update.Episodes, err = htmlutil.Int(m[3]); err != nil {
					ferr = err
					return false
				}
				if update.TotalEpisodes, err = htmlutil.Int(m[4]); err != nil {
					ferr = err
					return false
				}
			}
		}
		if when := info.Find("div.lightLink").First(); when.Length() > 0 {
			if update.Time, err = htmlutil.ParseProfileDate(when.Text()); err != nil {
				ferr = err
				return false
			}
		}
		updates = append(updates, update)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return updates, nil
}

// extractStats reads one statistics block (anime or manga): the days and
// mean-score summary plus the two metric lists below it.
func extractStats(block *goquery.Selection) (map[string]float64, error) {
	if block.Length() == 0 {
		return nil, errMissing("statistics block")
	}
	stats := make(map[string]float64)

	var ferr error
	block.Find("div.stat-score div").Each(func(_ int, d *goquery.Selection) {
		label := htmlutil.CleanText(d.Find("span").First().Text())
		if label == "" {
			return
		}
		raw := strings.TrimPrefix(htmlutil.CleanText(d.Text()), label)
		f, err := htmlutil.Float(raw)
		if err != nil {
			ferr = err
			return
		}
		stats[strings.TrimSuffix(label, ":")] = f
	})
	if ferr != nil {
		return nil, ferr
	}

	lists := block.Find("ul")
	// Watching, Completed, On-Hold, Dropped: link text plus a count span.
	lists.Eq(0).Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		n, err := htmlutil.Int(li.Find("span").First().Text())
		if err != nil {
			ferr = err
			return false
		}
		stats[htmlutil.CleanText(li.Find("a").First().Text())] = float64(n)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	// Total Entries, Rewatched, Episodes: label span plus value span.
	lists.Eq(1).Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		spans := li.Find("span")
		n, err := htmlutil.Int(spans.Eq(1).Text())
		if err != nil {
			ferr = err
			return false
		}
		stats[htmlutil.CleanText(spans.Eq(0).Text())] = float64(n)
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return stats, nil
}
