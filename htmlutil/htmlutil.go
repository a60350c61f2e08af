// Package htmlutil holds the text-level field extractors shared by the page
// parsers: whitespace cleanup, numeric parsing with thousands separators,
// MyAnimeList date formats, and entry-link path decomposition.
//
// Every function takes one raw text fragment and returns one typed value or
// an error on shape mismatch. Callers decide whether a failure aborts the
// surrounding parse.
package htmlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var multiSpacePattern = regexp.MustCompile(`\s+`)

// CleanText collapses runs of whitespace into single spaces and trims the
// result. Scraped text nodes carry the page's indentation otherwise.
func CleanText(s string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}

// Int parses a count the way the site renders it, with thousands separators.
func Int(s string) (int, error) {
	cleaned := strings.ReplaceAll(CleanText(s), ",", "")
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

// Float parses a decimal statistic such as "Days: 152.1".
func Float(s string) (float64, error) {
	cleaned := strings.ReplaceAll(CleanText(s), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// Absolute date layouts the site uses, most specific first. Layouts without
// a year parse into year 0; ParseProfileDateAt fills in the reference year.
var profileDateLayouts = []string{
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
	"01-02-06",
	"Jan 2, 3:04 PM",
	"Jan 2",
	"Jan 2006",
	"2006",
}

var relativePattern = regexp.MustCompile(`^(\d+) (second|minute|hour)s? ago$`)

// ParseProfileDate parses a date string in any of the formats the site
// renders on profile pages, relative forms included.
func ParseProfileDate(s string) (time.Time, error) {
	return ParseProfileDateAt(s, time.Now())
}

// ParseProfileDateAt is ParseProfileDate with an explicit reference time for
// the relative forms ("Now", "3 hours ago", "Yesterday, 8:02 PM").
func ParseProfileDateAt(s string, now time.Time) (time.Time, error) {
	cleaned := CleanText(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if strings.EqualFold(cleaned, "Now") {
		return now, nil
	}

	if m := relativePattern.FindStringSubmatch(cleaned); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("unrecognized date %q", s)
		}
		var unit time.Duration
		switch m[2] {
		case "second":
			unit = time.Second
		case "minute":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		}
		return now.Add(-time.Duration(n) * unit), nil
	}

	if rest, ok := strings.CutPrefix(cleaned, "Today, "); ok {
		return atClock(now, rest)
	}
	if rest, ok := strings.CutPrefix(cleaned, "Yesterday, "); ok {
		return atClock(now.AddDate(0, 0, -1), rest)
	}

	for _, layout := range profileDateLayouts {
		t, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		// Layouts without a year ("Jan 2, 3:04 PM") land in year 0.
		if t.Year() == 0 && strings.Contains(layout, "PM") {
			t = t.AddDate(now.Year(), 0, 0)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func atClock(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("3:04 PM", CleanText(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time of day %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// MediaPath splits an entry href of the form
// /anime/467/Ghost_in_the_Shell (absolute URLs included) into its kind
// segment and numeric ID. The kind is returned as the raw path segment:
// "anime", "manga", "character", "people".
func MediaPath(href string) (kind string, id int, err error) {
	path := href
	if u, parseErr := url.Parse(href); parseErr == nil && u.Path != "" {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("not an entry link: %q", href)
	}
	id, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("not an entry link: %q", href)
	}
	return parts[0], id, nil
}

// ClubID extracts the numeric club ID from a /clubs.php?cid=10178 link.
func ClubID(href string) (int, error) {
	u, err := url.Parse(href)
	if err != nil {
		return 0, fmt.Errorf("not a club link: %q", href)
	}
	id, err := strconv.Atoi(u.Query().Get("cid"))
	if err != nil {
		return 0, fmt.Errorf("not a club link: %q", href)
	}
	return id, nil
}
