package menu

import (
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// FoodListing identifies one item on a dining court menu page.
type FoodListing struct {
	Name            string `json:"name"`
	Station         string `json:"station"`
	DetailReference string `json:"nutrition_url"`
}

// Station groups listings in the order they appear on the page.
type Station struct {
	Name  string
	Items []FoodListing
}

var (
	stationExpr     = byClass("*", "station")
	stationNameExpr = byClass("*", "station-name")
	itemExpr        = byClass("*", "station-item--container_plain")
	itemNameExpr    = byClass("*", "station-item-text")
	itemLinkExpr    = byClass("a", "station-item")
)

// ExtractListings walks the stations of a rendered menu page in document order.
// Items without a name or without a link are left out. A page without any station
// markup (closed court, changed layout) gives an empty result.
func ExtractListings(doc *html.Node, baseURL string) []Station {
	stations := []Station{}
	if doc == nil {
		return stations
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		base = &url.URL{}
	}

	for _, el := range htmlquery.QuerySelectorAll(doc, stationExpr) {
		name, ok := firstText(el, stationNameExpr)
		if !ok || name == "" {
			continue
		}

		station := Station{
			Name:  name,
			Items: []FoodListing{},
		}

		for _, itemEl := range htmlquery.QuerySelectorAll(el, itemExpr) {
			listing, ok := extractListing(itemEl, base)
			if !ok {
				continue
			}
			listing.Station = name
			station.Items = append(station.Items, listing)
		}

		stations = append(stations, station)
	}

	return stations
}

func extractListing(node *html.Node, base *url.URL) (FoodListing, bool) {
	name, ok := firstText(node, itemNameExpr)
	if !ok || name == "" {
		return FoodListing{}, false
	}

	link := htmlquery.QuerySelector(node, itemLinkExpr)
	if link == nil {
		return FoodListing{}, false
	}

	href := strings.TrimSpace(htmlquery.SelectAttr(link, "href"))
	if href == "" {
		return FoodListing{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return FoodListing{}, false
	}

	return FoodListing{
		Name:            name,
		DetailReference: base.ResolveReference(ref).String(),
	}, true
}
