package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fordMenu = `{"data":{"diningCourtByName":{"dailyMenu":{"meals":[
	{"name":"Breakfast","status":"Open","stations":[{"name":"Eggs","items":[{"item":{"itemId":"e1","name":"Omelet","isNutritionReady":true}}]}]},
	{"name":"Lunch","status":"Open","stations":[
		{"name":"Grill","items":[
			{"item":{"itemId":"b1","name":"Veggie Burger","isNutritionReady":true}},
			{"item":{"itemId":"f1","name":"Fries","isNutritionReady":true}},
			{"item":{"itemId":"x1","name":"Mystery","isNutritionReady":false}},
			{"item":null}
		]},
		{"name":"Salad","items":[{"item":{"itemId":"c1","name":"Caesar","isNutritionReady":true}}]},
		{"name":"Grill","items":[{"item":{"itemId":"h1","name":"Hot Dog","isNutritionReady":true}}]}
	]}
]}}}}`

type fakeAPI struct {
	menus     map[string]string // court to GraphQL menu response
	nutrition map[string]string // item id to GraphQL nutrition response
	v2        map[string]string // item id to v2 item response
	requests  atomic.Int32
}

func (api *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		if id, ok := strings.CutPrefix(r.URL.Path, "/menus/v2/items/"); ok {
			body, ok := api.v2[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(body))
			return
		}

		if r.URL.Path != "/menus/v3/GraphQL" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, testBase, r.Header.Get("Origin"))

		var query graphqlRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&query)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var body string
		var ok bool
		switch query.OperationName {
		case "getLocationMenu":
			assert.Equal(t, "2025-09-01", query.Variables["date"])
			body, ok = api.menus[query.Variables["name"].(string)]
		case "getItemNutrition":
			body, ok = api.nutrition[query.Variables["itemId"].(string)]
		}
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	})
}

func nutritionBody(facts ...string) string {
	return `{"data":{"item":{"name":"x","nutrition":[` + strings.Join(facts, ",") + `]}}}`
}

func newTestAPISource(t *testing.T, api *fakeAPI) (*APISource, *prometheus.Monitor) {
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	conf := testConfig(2)
	conf.APIURL = server.URL + "/menus"
	monitor := prometheus.New()

	return NewAPISource(conf, monitor, testLogger()), monitor
}

func TestAPISource_ScrapeCourt(t *testing.T) {
	api := &fakeAPI{
		menus: map[string]string{"Ford": fordMenu},
		nutrition: map[string]string{
			"b1": nutritionBody(
				`{"label":"Serving Size","value":"1 each","unit":""}`,
				`{"label":"Calories","value":310.4,"unit":""}`,
				`{"label":"Protein","value":21,"unit":"g"}`,
				`{"label":"Carbohydrate","value":"35g","unit":"g"}`,
				`{"label":"Fat","value":12,"unit":"g"}`,
				`{"label":"Sodium","value":"< 1mg","unit":"mg"}`,
			),
			"f1": nutritionBody(`{"label":"Calories","value":365,"unit":""}`),
			"c1": nutritionBody(`{"label":"Protein","value":"4g","unit":"g"}`),
			"h1": nutritionBody(),
		},
	}
	source, monitor := newTestAPISource(t, api)

	result := source.ScrapeCourt(context.Background(), "Ford", "lunch", testDate)

	assert.Empty(t, result.Error)
	assert.Equal(t, "Ford", result.DiningCourt)
	assert.Equal(t, "2025/09/01", result.Date)
	assert.Equal(t, 4, result.TotalItems)

	// Grill appears twice and is merged, items not ready are left out
	require.Len(t, result.Stations, 2)
	assert.Equal(t, "Grill", result.Stations[0].Name)
	assert.Equal(t, "Salad", result.Stations[1].Name)
	require.Len(t, result.Stations[0].Items, 3)
	assert.Equal(t, "Veggie Burger", result.Stations[0].Items[0].Name)
	assert.Equal(t, "Fries", result.Stations[0].Items[1].Name)
	assert.Equal(t, "Hot Dog", result.Stations[0].Items[2].Name)

	burger := result.Stations[0].Items[0]
	assert.Equal(t, testBase+"/menus/item/b1", burger.DetailReference)
	assert.Equal(t, "Grill", burger.Station)
	assert.Equal(t, "Ford", burger.Court)
	assert.Equal(t, "lunch", burger.MealTime)
	assert.Empty(t, burger.NutritionError)
	require.NotNil(t, burger.Nutrition.ServingSize)
	assert.Equal(t, "1 each", *burger.Nutrition.ServingSize)
	require.NotNil(t, burger.Nutrition.TotalCalories)
	assert.Equal(t, 310, *burger.Nutrition.TotalCalories)
	assert.Equal(t, map[menu.Field]float64{
		menu.FieldProtein:    21,
		menu.FieldTotalCarbs: 35,
		menu.FieldTotalFat:   12,
		menu.FieldSodium:     0.5,
	}, burger.Nutrition.Nutrients)

	hotDog := result.Stations[0].Items[2]
	assert.True(t, hotDog.Nutrition.IsEmpty())
	assert.Empty(t, hotDog.NutritionError)
	assert.InDelta(t, 1, testutil.ToFloat64(monitor.EmptyRecords.WithLabelValues("Ford")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(monitor.ItemsScraped.WithLabelValues("Ford", "lunch")), 0)
}

func TestAPISource_NutritionFallback(t *testing.T) {
	api := &fakeAPI{
		menus: map[string]string{"Ford": fordMenu},
		nutrition: map[string]string{
			"b1": nutritionBody(`{"label":"Calories","value":310,"unit":""}`),
			"f1": `{"errors":[{"message":"item not found"}]}`,
		},
		v2: map[string]string{
			"f1": `{"Nutrition":[
				{"Name":"Serving Size","LabelValue":"4 oz"},
				{"Name":"Calories","Value":364.6,"LabelValue":"365"},
				{"Name":"Total Fat","Value":17,"LabelValue":"17g"},
				{"Name":"Dietary Fiber","LabelValue":"3g"}
			]}`,
			"c1": `{"Nutrition":[]}`,
		},
	}
	source, _ := newTestAPISource(t, api)

	result := source.ScrapeCourt(context.Background(), "Ford", "lunch", testDate)
	require.Len(t, result.Stations, 2)
	assert.Equal(t, 4, result.TotalItems)

	fries := result.Stations[0].Items[1]
	assert.Empty(t, fries.NutritionError)
	require.NotNil(t, fries.Nutrition.ServingSize)
	assert.Equal(t, "4 oz", *fries.Nutrition.ServingSize)
	require.NotNil(t, fries.Nutrition.TotalCalories)
	assert.Equal(t, 365, *fries.Nutrition.TotalCalories)
	assert.Equal(t, map[menu.Field]float64{
		menu.FieldTotalFat:     17,
		menu.FieldDietaryFiber: 3,
	}, fries.Nutrition.Nutrients)

	// empty v2 record
	caesar := result.Stations[1].Items[0]
	assert.Contains(t, caesar.NutritionError, "no nutrition data")
	assert.True(t, caesar.Nutrition.IsEmpty())

	// both endpoints failing
	hotDog := result.Stations[0].Items[2]
	assert.Contains(t, hotDog.NutritionError, "v2 fallback failed")
	assert.NotNil(t, hotDog.Nutrition.Nutrients)
}

func TestAPISource_MenuFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      string
		failures float64
	}{
		{"server error", "", "unexpected status code 500", 1},
		{"graphql error", `{"errors":[{"message":"court not found"}]}`, "court not found", 0},
		{"no daily menu", `{"data":{"diningCourtByName":{"dailyMenu":null}}}`, "no daily menu", 0},
		{"broken json", `{"data":`, "could not decode response", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{menus: map[string]string{}}
			if tt.body != "" {
				api.menus["Ford"] = tt.body
			}
			source, monitor := newTestAPISource(t, api)

			result := source.ScrapeCourt(context.Background(), "Ford", "lunch", testDate)
			assert.Contains(t, result.Error, "could not fetch menu data")
			assert.Contains(t, result.Error, tt.err)
			assert.Equal(t, 0, result.TotalItems)
			assert.NotNil(t, result.Stations)
			assert.InDelta(t, tt.failures, testutil.ToFloat64(monitor.RenderFailures.WithLabelValues("listing")), 0)
		})
	}
}

func TestAPISource_MealNotServed(t *testing.T) {
	api := &fakeAPI{menus: map[string]string{"Ford": fordMenu}}
	source, _ := newTestAPISource(t, api)

	result := source.ScrapeCourt(context.Background(), "Ford", "dinner", testDate)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Stations)
	assert.NotNil(t, result.Stations)
	assert.Equal(t, int32(1), api.requests.Load())
}

func TestAPISource_Cancelled(t *testing.T) {
	api := &fakeAPI{menus: map[string]string{"Ford": fordMenu}}
	source, _ := newTestAPISource(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := source.ScrapeCourt(ctx, "Ford", "lunch", testDate)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, result.TotalItems)
	assert.Equal(t, int32(0), api.requests.Load())
}

func TestAPISource_ScrapeAll(t *testing.T) {
	api := &fakeAPI{
		menus: map[string]string{
			"Windsor": `{"data":{"diningCourtByName":{"dailyMenu":{"meals":[{"name":"Late Lunch","stations":[{"name":"Deli","items":[{"item":{"itemId":"d1","name":"Sub","isNutritionReady":true}}]}]}]}}}}`,
		},
		nutrition: map[string]string{"d1": nutritionBody(`{"label":"Calories","value":500,"unit":""}`)},
	}
	source, _ := newTestAPISource(t, api)

	daily := source.ScrapeAll(context.Background(), "late lunch", testDate)
	assert.Equal(t, "late lunch", daily.MealTime)
	assert.Equal(t, "2025/09/01", daily.Date)
	require.Len(t, daily.Courts, 1)
	assert.Equal(t, "Windsor", daily.Courts[0].DiningCourt)
	assert.Equal(t, 1, daily.TotalItems())
	assert.Equal(t, "Deli", daily.Courts[0].Stations[0].Name)
}

func TestApplyFact(t *testing.T) {
	value := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		label    string
		value    *float64
		text     string
		field    menu.Field
		expected float64
		ok       bool
	}{
		{"value wins over text", "Protein", value(21), "20g", menu.FieldProtein, 21, true},
		{"text parsed", "Sodium", nil, "600mg", menu.FieldSodium, 600, true},
		{"alias", "fat", value(3), "", menu.FieldTotalFat, 3, true},
		{"saturated keeps own field", "Saturated Fat", value(1), "", menu.FieldSaturatedFat, 1, true},
		{"percent rejected", "Iron", nil, "10%", menu.FieldIron, 0, false},
		{"negative rejected", "Zinc", value(-1), "", menu.FieldZinc, 0, false},
		{"unknown label", "Caffeine", value(5), "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := menu.NormalizeNutrition(nil)
			applyFact(&record, tt.label, tt.value, tt.text)
			got, ok := record.Get(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 0.0001)
		})
	}
}

func TestNewSource(t *testing.T) {
	monitor := prometheus.New()
	conf := &config.Config{Renderer: "http"}

	tests := []struct {
		source   string
		expected Source
		err      bool
	}{
		{"", &Scraper{}, false},
		{"html", &Scraper{}, false},
		{"api", &APISource{}, false},
		{"ftp", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			conf.Source = tt.source
			source, err := NewSource(context.Background(), conf, monitor, testLogger())
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expected, source)
		})
	}
}
