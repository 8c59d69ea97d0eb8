package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://dining.example.edu"

func mustParse(t *testing.T, markup string) []Station {
	t.Helper()

	doc, err := ParseDocument(markup)
	require.NoError(t, err)

	return ExtractListings(doc, baseURL)
}

func TestExtractListingsSingleItem(t *testing.T) {
	stations := mustParse(t, `
<html><body>
  <div class="station">
    <div class="station-name">Grill</div>
    <div class="station-item--container_plain">
      <a class="station-item" href="/menus/item/123"><span class="station-item-text">Veggie Burger</span></a>
    </div>
  </div>
</body></html>`)

	require.Len(t, stations, 1)
	assert.Equal(t, Station{
		Name: "Grill",
		Items: []FoodListing{
			{Name: "Veggie Burger", Station: "Grill", DetailReference: "https://dining.example.edu/menus/item/123"},
		},
	}, stations[0])
}

func TestExtractListingsDocumentOrder(t *testing.T) {
	stations := mustParse(t, `
<div class="menu">
  <section class="station featured">
    <h2 class="station-name"> Deli </h2>
    <div class="station-item--container_plain"><a class="station-item" href="item/b"><span class="station-item-text">Bagel</span></a></div>
    <div class="station-item--container_plain"><a class="station-item" href="item/a"><span class="station-item-text">Apple</span></a></div>
  </section>
  <section class="station">
    <h2 class="station-name">Bakery</h2>
    <div class="station-item--container_plain"><a class="station-item" href="https://other.example.edu/x"><span class="station-item-text">Croissant</span></a></div>
  </section>
</div>`)

	require.Len(t, stations, 2)
	assert.Equal(t, "Deli", stations[0].Name)
	assert.Equal(t, "Bakery", stations[1].Name)

	require.Len(t, stations[0].Items, 2)
	assert.Equal(t, "Bagel", stations[0].Items[0].Name)
	assert.Equal(t, "Apple", stations[0].Items[1].Name)
	assert.Equal(t, "https://dining.example.edu/item/b", stations[0].Items[0].DetailReference)
	assert.Equal(t, "https://other.example.edu/x", stations[1].Items[0].DetailReference)
	assert.Equal(t, "Bakery", stations[1].Items[0].Station)
}

func TestExtractListingsSkipsPartialItems(t *testing.T) {
	stations := mustParse(t, `
<div class="station">
  <div class="station-name">Grill</div>
  <div class="station-item--container_plain"><span class="station-item-text">No Link Fries</span></div>
  <div class="station-item--container_plain"><a class="station-item" href="/menus/item/1"><span class="station-item-text">  </span></a></div>
  <div class="station-item--container_plain"><a class="station-item" href="/menus/item/2"></a></div>
  <div class="station-item--container_plain"><a class="station-item"><span class="station-item-text">Empty Href</span></a></div>
  <div class="station-item--container_plain"><a class="station-item" href="/menus/item/3"><span class="station-item-text">Hot   Dog</span></a></div>
</div>`)

	require.Len(t, stations, 1)
	require.Len(t, stations[0].Items, 1)
	assert.Equal(t, "Hot Dog", stations[0].Items[0].Name)
	assert.Equal(t, "https://dining.example.edu/menus/item/3", stations[0].Items[0].DetailReference)
}

func TestExtractListingsStations(t *testing.T) {
	stations := mustParse(t, `
<div class="station"><div class="station-item--container_plain"><a class="station-item" href="/x"><span class="station-item-text">Orphan</span></a></div></div>
<div class="station"><div class="station-name">Closed Station</div></div>
<div class="station-name">Not a station</div>`)

	require.Len(t, stations, 1)
	assert.Equal(t, "Closed Station", stations[0].Name)
	assert.Empty(t, stations[0].Items)
}

func TestExtractListingsNoMarkers(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{"empty", ""},
		{"closed court", `<html><body><p>This location is closed today.</p></body></html>`},
		{"similar classes only", `<div class="stations"><div class="station-items">Nope</div></div>`},
		{"garbage", `<<<div class=>>> </td></tr> &amp`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stations := mustParse(t, tt.markup)
			assert.NotNil(t, stations)
			assert.Empty(t, stations)
		})
	}
}

func TestExtractListingsNilDocument(t *testing.T) {
	assert.Empty(t, ExtractListings(nil, baseURL))
}

func TestExtractListingsRelativeWithoutBase(t *testing.T) {
	doc, err := ParseDocument(`<div class="station"><div class="station-name">Grill</div>
<div class="station-item--container_plain"><a class="station-item" href="/menus/item/9"><span class="station-item-text">Taco</span></a></div></div>`)
	require.NoError(t, err)

	stations := ExtractListings(doc, "")
	require.Len(t, stations, 1)
	require.Len(t, stations[0].Items, 1)
	assert.Equal(t, "/menus/item/9", stations[0].Items[0].DetailReference)
}
