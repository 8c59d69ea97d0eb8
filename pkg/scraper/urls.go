package scraper

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the date format of menu addresses and menu documents.
const DateLayout = "2006/01/02"

// MenuURL returns the listing page address of a court, e.g.
// https://dining.purdue.edu/menus/Windsor/2025/09/01/Late%20Lunch/
func MenuURL(base, court, meal string, date time.Time) string {
	meal = cases.Title(language.English).String(strings.TrimSpace(meal))

	return strings.TrimRight(base, "/") +
		"/menus/" + url.PathEscape(court) +
		"/" + date.Format(DateLayout) +
		"/" + url.PathEscape(meal) + "/"
}

// ParseDate accepts both 2025/09/01 and 2025-09-01.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.ReplaceAll(strings.TrimSpace(s), "-", "/"))
}
