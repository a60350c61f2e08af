package mal

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/mal/htmlutil"
)

var (
	helpfulPattern     = regexp.MustCompile(`^(\d+) of (\d+)`)
	consumptionPattern = regexp.MustCompile(`^(\d+) of (\d+|\?)`)
)

// parseReviews extracts one page of the user's review listing.
func (u *User) parseReviews(doc *goquery.Document) (fragment, error) {
	frag, err := u.parseSidebar(doc)
	if err != nil {
		return nil, err
	}
	col, err := contentColumn(doc)
	if err != nil {
		return nil, err
	}

	if err := u.setField(frag, "reviews", func() (any, error) {
		return u.extractReviews(col)
	}); err != nil {
		return nil, err
	}
	return frag, nil
}

func (u *User) extractReviews(col *goquery.Selection) (map[Media]Review, error) {
	reviews := make(map[Media]Review)
	var ferr error
	col.ChildrenFiltered("div.borderDark").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		children := row.ChildrenFiltered("div")
		if children.Length() < 2 {
			ferr = errMissing("review columns")
			return false
		}
		meta := children.Eq(0).ChildrenFiltered("div")

		var review Review
		var err error
		if review.Date, err = htmlutil.ParseProfileDate(meta.Eq(0).Find("div").First().Text()); err != nil {
			ferr = err
			return false
		}
		entry, err := u.favoriteMediaLink(meta.Eq(0).Find("a").First())
		if err != nil {
			ferr = err
			return false
		}

		m := helpfulPattern.FindStringSubmatch(htmlutil.CleanText(meta.Eq(1).ChildrenFiltered("span").First().Text()))
		if m == nil {
			ferr = errMissing("review helpful counts")
			return false
		}
		if review.Helpful, err = htmlutil.Int(m[1]); err != nil {
			ferr = err
			return false
		}
		if review.Voters, err = htmlutil.Int(m[2]); err != nil {
			ferr = err
			return false
		}

		m = consumptionPattern.FindStringSubmatch(htmlutil.CleanText(meta.Eq(2).Text()))
		if m == nil {
			ferr = errMissing("review progress")
			return false
		}
		if review.Consumed, err = htmlutil.Int(m[1]); err != nil {
			ferr = err
			return false
		}
		if m[2] != "?" {
			if review.Total, err = htmlutil.Int(m[2]); err != nil {
				ferr = err
				return false
			}
		}

		rating := strings.TrimPrefix(htmlutil.CleanText(meta.Eq(3).Find("div").First().Text()), "Overall Rating: ")
		if review.Rating, err = htmlutil.Int(rating); err != nil {
			ferr = err
			return false
		}

		// The body div mixes the review text with helpful-vote widgets;
		// strip the nested elements and keep the bare text nodes.
		body := children.Eq(1).Clone()
		body.Find("div, a").Remove()
		review.Text = strings.TrimSpace(body.Text())

		reviews[entry] = review
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return reviews, nil
}

// parseRecommendations extracts the user's recommendation listing. The
// first matching row is the column header and carries no recommendation.
func (u *User) parseRecommendations(doc *goquery.Document) (fragment, error) {
	frag, err := u.parseSidebar(doc)
	if err != nil {
		return nil, err
	}
	col, err := contentColumn(doc)
	if err != nil {
		return nil, err
	}

	rows := col.Find("div.spaceit.borderClass")
	if rows.Length() == 0 {
		return frag, nil
	}

	if err := u.setField(frag, "recommendations", func() (any, error) {
		recommendations := make(map[Media]Recommendation)
		var ferr error
		rows.Slice(1, rows.Length()).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.Find("table").First().Find("td")
			liked, err := u.favoriteMediaLink(cells.Eq(0).ChildrenFiltered("a").First())
			if err != nil {
				ferr = err
				return false
			}
			recommended, err := u.favoriteMediaLink(cells.Eq(1).ChildrenFiltered("a").First())
			if err != nil {
				ferr = err
				return false
			}

			rec := Recommendation{
				Recommended: recommended,
				Text:        strings.TrimSpace(row.Find("p").First().Text()),
			}
			// The menu line reads "Anime Recommendation - Mar 4, 2015".
			menu := htmlutil.CleanText(row.ChildrenFiltered("div").First().Text())
			_, rawDate, found := strings.Cut(menu, " - ")
			if !found {
				ferr = errMissing("recommendation date")
				return false
			}
			if rec.Date, err = htmlutil.ParseProfileDate(rawDate); err != nil {
				ferr = err
				return false
			}
			recommendations[liked] = rec
			return true
		})
		if ferr != nil {
			return nil, ferr
		}
		return recommendations, nil
	}); err != nil {
		return nil, err
	}
	return frag, nil
}

// parseClubs extracts the user's club membership listing.
func (u *User) parseClubs(doc *goquery.Document) (fragment, error) {
	frag, err := u.parseSidebar(doc)
	if err != nil {
		return nil, err
	}
	col, err := contentColumn(doc)
	if err != nil {
		return nil, err
	}

	if err := u.setField(frag, "clubs", func() (any, error) {
		clubs := []*Club{}
		var ferr error
		col.Find("ol").First().Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			link := li.Find("a").First()
			href, ok := link.Attr("href")
			if !ok {
				ferr = errMissing("club link")
				return false
			}
			id, err := htmlutil.ClubID(href)
			if err != nil {
				ferr = err
				return false
			}
			club, err := u.session.Club(id)
			if err != nil {
				ferr = err
				return false
			}
			club.setTitleHint(htmlutil.CleanText(link.Text()))
			clubs = append(clubs, club)
			return true
		})
		if ferr != nil {
			return nil, ferr
		}
		return clubs, nil
	}); err != nil {
		return nil, err
	}
	return frag, nil
}

// parseFriends extracts the user's friend listing. Friend usernames resolve
// through the registry, so each friend is the canonical entity for that
// username.
func (u *User) parseFriends(doc *goquery.Document) (fragment, error) {
	frag, err := u.parseSidebar(doc)
	if err != nil {
		return nil, err
	}
	col, err := contentColumn(doc)
	if err != nil {
		return nil, err
	}

	if err := u.setField(frag, "friends", func() (any, error) {
		friends := make(map[*User]Friendship)
		var ferr error
		col.Find("div.friendHolder").EachWithBreak(func(_ int, holder *goquery.Selection) bool {
			cols := holder.Find("div.friendBlock").First().Find("div")
			name := htmlutil.CleanText(cols.Eq(1).Find("a").First().Text())
			friend, err := u.session.User(name)
			if err != nil {
				ferr = err
				return false
			}

			var fs Friendship
			if raw := htmlutil.CleanText(cols.Eq(2).Text()); raw != "" {
				if fs.LastActive, err = htmlutil.ParseProfileDate(raw); err != nil {
					ferr = err
					return false
				}
			}
			if raw := htmlutil.CleanText(cols.Eq(3).Text()); raw != "" {
				raw = htmlutil.CleanText(strings.TrimPrefix(raw, "Friends since"))
				if fs.Since, err = htmlutil.ParseProfileDate(raw); err != nil {
					ferr = err
					return false
				}
			}
			friends[friend] = fs
			return true
		})
		if ferr != nil {
			return nil, ferr
		}
		return friends, nil
	}); err != nil {
		return nil, err
	}
	return frag, nil
}
