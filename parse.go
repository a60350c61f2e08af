package mal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeGROOVE-dev/mal/htmlutil"
)

// setField runs one field extractor and applies the session's error policy.
// On success the value lands in the fragment. On failure, strict mode
// returns a FieldError and permissive mode drops the field and moves on.
func (u *User) setField(frag fragment, name string, fn func() (any, error)) error {
	v, err := fn()
	if err != nil {
		if u.session.strict {
			return &FieldError{Field: name, Err: err}
		}
		u.session.logger.Debug("skipping unparseable field",
			"user", u.username, "field", name, "error", err)
		return nil
	}
	frag[name] = v
	return nil
}

// contentColumn returns the right-hand column every profile section page
// wraps its listing in.
func contentColumn(doc *goquery.Document) (*goquery.Selection, error) {
	col := doc.Find("div#content").First().
		Find("table").First().
		Find("tr").First().
		ChildrenFiltered("td").Eq(1)
	if col.Length() == 0 {
		return nil, &MalformedPageError{Reason: "content columns missing"}
	}
	return col, nil
}

// parseSidebar extracts the attributes the left sidebar carries on every
// profile page kind: picture, user ID, activity dates, and count stats.
// A nonexistent user renders an error page; that is InvalidEntityError no
// matter the field error mode.
func (u *User) parseSidebar(doc *goquery.Document) (fragment, error) {
	if doc.Find("div.error404").Length() > 0 {
		return nil, &InvalidEntityError{Kind: KindUser, Key: u.username}
	}

	panel := doc.Find("div.user-profile").First()
	if panel.Length() == 0 {
		return nil, &MalformedPageError{Reason: "user profile container missing"}
	}

	frag := make(fragment)

	if err := u.setField(frag, "picture", func() (any, error) {
		src, ok := panel.Find("img").First().Attr("src")
		if !ok {
			return nil, errMissing("profile image")
		}
		return src, nil
	}); err != nil {
		return nil, err
	}

	// The user ID only appears in the blog feed link.
	if err := u.setField(frag, "id", func() (any, error) {
		link := panel.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.Contains(a.Text(), "Blog Feed")
		}).First()
		href, ok := link.Attr("href")
		if !ok {
			return nil, errMissing("blog feed link")
		}
		_, raw, found := strings.Cut(href, "&id=")
		if !found {
			return nil, errMissing("user id in blog feed link")
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		return id, nil
	}); err != nil {
		return nil, err
	}

	statuses := panel.ChildrenFiltered("ul.user-status")
	general := statuses.Eq(0)

	dateFields := []struct{ name, label string }{
		{"last_online", "Last Online"},
		{"birthday", "Birthday"},
		{"join_date", "Joined"},
	}
	for _, f := range dateFields {
		if raw, ok := statusValue(general, f.label); ok {
			if err := u.setField(frag, f.name, func() (any, error) {
				return htmlutil.ParseProfileDate(raw)
			}); err != nil {
				return nil, err
			}
		}
	}
	textFields := []struct{ name, label string }{
		{"gender", "Gender"},
		{"location", "Location"},
	}
	for _, f := range textFields {
		if raw, ok := statusValue(general, f.label); ok {
			frag[f.name] = raw
		}
	}
	if _, ok := frag["gender"]; !ok {
		frag["gender"] = "Not specified"
	}

	counts := statuses.Eq(2)
	countFields := []struct{ name, label string }{
		{"num_forum_posts", "Forum Posts"},
		{"num_reviews", "Reviews"},
		{"num_recommendations", "Recommendations"},
		{"num_blog_posts", "Blog Posts"},
		{"num_clubs", "Clubs"},
	}
	for _, f := range countFields {
		raw, ok := statusValue(counts, f.label)
		if !ok {
			continue
		}
		if err := u.setField(frag, f.name, func() (any, error) {
			return htmlutil.Int(raw)
		}); err != nil {
			return nil, err
		}
	}

	if link := panel.Find("div.user-profile-sns a").First(); link.Length() > 0 {
		frag["website"] = htmlutil.CleanText(link.Text())
	}

	return frag, nil
}

func errMissing(what string) error { return fmt.Errorf("%s missing", what) }

// statusValue finds the sidebar status row whose span label matches and
// returns the text after the label.
func statusValue(list *goquery.Selection, label string) (string, bool) {
	var value string
	found := false
	list.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		span := li.Find("span").First()
		if htmlutil.CleanText(span.Text()) != label {
			return true
		}
		whole := htmlutil.CleanText(li.Text())
		value = htmlutil.CleanText(strings.TrimPrefix(whole, label))
		found = true
		return false
	})
	return value, found
}
