package ai

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/liushuangls/go-anthropic/v2/jsonschema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(name string, calories *int, nutrients map[menu.Field]float64) scraper.MenuItem {
	serving := "1 each"
	return scraper.MenuItem{
		FoodListing: menu.FoodListing{Name: name},
		Nutrition: menu.NutritionRecord{
			ServingSize:   &serving,
			TotalCalories: calories,
			Nutrients:     nutrients,
		},
	}
}

func intPtr(i int) *int {
	return &i
}

func testMenu() scraper.DailyMenu {
	return scraper.DailyMenu{
		MealTime: "lunch",
		Date:     "2025/09/01",
		Courts: []scraper.CourtMenu{
			{DiningCourt: "Earhart", Stations: scraper.Stations{}},
			{
				DiningCourt: "Ford",
				TotalItems:  3,
				Stations: scraper.Stations{
					{Name: "Grill", Items: []scraper.MenuItem{
						item("Veggie Burger", intPtr(310), map[menu.Field]float64{menu.FieldProtein: 21, menu.FieldTotalCarbs: 35, menu.FieldDietaryFiber: 6, menu.FieldCholesterol: 0}),
						item("Fries", nil, map[menu.Field]float64{}),
						item("Onion Rings", intPtr(400), nil),
					}},
				},
			},
		},
	}
}

func TestRenderPrompt(t *testing.T) {
	goals := Goals{Notes: "no mushrooms"}.WithDefaults()
	rendered := RenderPrompt(goals, "Dining Court: Ford\n")

	assert.NotContains(t, rendered, "${")
	assert.Contains(t, rendered, "Daily calorie target: 2000")
	assert.Contains(t, rendered, "Protein target: 125g (25% of calories)")
	assert.Contains(t, rendered, "Carb target: 225g (45% of calories)")
	assert.Contains(t, rendered, "Fat target: 66g (30% of calories)")
	assert.Contains(t, rendered, "Dietary restrictions: None")
	assert.Contains(t, rendered, "no mushrooms")
	assert.Contains(t, rendered, "Dining Court: Ford")
	assert.True(t, len(rendered) < 3000)
}

func TestPickCourt(t *testing.T) {
	court, ok := PickCourt(testMenu())
	require.True(t, ok)
	assert.Equal(t, "Ford", court.DiningCourt)

	empty := scraper.DailyMenu{Courts: []scraper.CourtMenu{{DiningCourt: "Wiley"}, {DiningCourt: "Windsor"}}}
	court, ok = PickCourt(empty)
	require.True(t, ok)
	assert.Equal(t, "Wiley", court.DiningCourt)

	_, ok = PickCourt(scraper.DailyMenu{})
	assert.False(t, ok)
}

func TestFormatCourt(t *testing.T) {
	text := FormatCourt(testMenu().Courts[1])

	expected := "Dining Court: Ford\n\n" +
		"Station: Grill\n" +
		"  - Veggie Burger (1 each): 310 cal, 21g protein, 35g carbs, 6g fiber, 0mg cholesterol\n" +
		"  - Fries (1 each): N/A cal, N/Ag protein, N/Ag carbs, N/Ag fiber, N/Amg cholesterol\n" +
		"  - Onion Rings (1 each): 400 cal, N/Ag protein, N/Ag carbs, N/Ag fiber, N/Amg cholesterol\n\n"
	assert.Equal(t, expected, text)
}

func TestTemplateRender(t *testing.T) {
	goals := Goals{DietaryRestrictions: []string{"Vegetarian", " "}, ProteinPercentage: 30, CarbPercentage: 30, FatPercentage: 30}.WithDefaults()
	now := time.Date(2025, 9, 1, 12, 30, 0, 0, time.UTC)

	text := (&Template{}).Render(goals, testMenu(), now)

	assert.True(t, strings.HasPrefix(text, "Your Personalized Meal Plan\nGenerated: 2025-09-01 12:30\n"))
	assert.Contains(t, text, "Daily Calories Target: 2000")
	assert.Contains(t, text, "Dietary Preferences: Vegetarian\n")
	assert.Contains(t, text, "Warning: macro percentages do not add up to 100%.")
	assert.Contains(t, text, "- Veggie Burger (Ford • Grill) - 310 kcal")
	assert.Contains(t, text, "- Fries (Ford • Grill)\n")
	assert.NotContains(t, text, "Onion Rings") // two items per station
	assert.NotContains(t, text, "Suggestion A")
}

func TestTemplateRenderEmptyMenu(t *testing.T) {
	text := (&Template{}).Render(Goals{}.WithDefaults(), scraper.DailyMenu{}, time.Now())

	assert.Contains(t, text, "- Suggestion A\n- Suggestion B\n- Suggestion C\n")
	assert.NotContains(t, text, "Warning")
}

func TestSuggestLimit(t *testing.T) {
	m := scraper.DailyMenu{}
	for _, c := range []string{"A", "B", "C", "D"} {
		court := scraper.CourtMenu{DiningCourt: c}
		for _, s := range []string{"s1", "s2", "s3"} {
			court.Stations = append(court.Stations, scraper.StationMenu{Name: s, Items: []scraper.MenuItem{
				item("x", nil, nil), item("y", nil, nil), item("z", nil, nil),
			}})
		}
		m.Courts = append(m.Courts, court)
	}

	suggestions := suggest(m)
	assert.Len(t, suggestions, 8)
	for _, s := range suggestions {
		assert.NotContains(t, s, "(D ")
		assert.NotContains(t, s, "s3)")
	}
}

func TestMenuTools(t *testing.T) {
	tools := menuTools(testMenu())
	require.Len(t, tools, 2)

	list, err := tools[0].Fn("")
	require.NoError(t, err)
	assert.Contains(t, list, "Ford: 3 items in 1 stations")

	courtMenu, err := tools[1].Fn(`{"court":"ford"}`)
	require.NoError(t, err)
	assert.Contains(t, courtMenu, "Veggie Burger")

	missing, err := tools[1].Fn(`{"court":"Wiley"}`)
	require.NoError(t, err)
	assert.Contains(t, missing, "does not serve")

	_, err = tools[1].Fn(`not json`)
	assert.Error(t, err)

	court := tools[1].Schema.Properties["court"]
	assert.Equal(t, []string{"Earhart", "Ford"}, court.GetEnumAsStrings())
}

func TestGetPlanFallsBackToTemplate(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	monitor := prometheus.New()

	a := NewAi(&config.Config{AiProvider: "anthropic"}, monitor, logger)
	plan, err := a.GetPlan(context.Background(), Goals{}, testMenu())
	require.NoError(t, err)

	assert.Equal(t, "template", plan.Provider)
	assert.Equal(t, "Ford", plan.Court)
	assert.Contains(t, plan.Text, "Veggie Burger")
	assert.InDelta(t, 1, testutil.ToFloat64(monitor.PlansGenerated.WithLabelValues("template")), 0.001)
}

func TestGetPlanInvalidGoals(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	a := NewAi(&config.Config{AiProvider: "template"}, prometheus.New(), logger)
	_, err := a.GetPlan(context.Background(), Goals{TargetCalories: -5}, testMenu())
	assert.ErrorIs(t, err, ErrInvalidGoals)
}

func TestAnthropicSchema(t *testing.T) {
	defs := anthropicTools(menuTools(testMenu()))
	require.Len(t, defs, 2)
	assert.Equal(t, "get_court_menu", defs[1].Name)

	def := anthropicSchema(menuTools(testMenu())[1].Schema)
	assert.Equal(t, jsonschema.Object, def.Type)
	assert.Equal(t, []string{"court"}, def.Required)
	assert.Equal(t, jsonschema.String, def.Properties["court"].Type)
	assert.Equal(t, []string{"Earhart", "Ford"}, def.Properties["court"].Enum)
	assert.Empty(t, def.Enum)
}

func TestOpenAiSchema(t *testing.T) {
	field := openAiSchema(menuTools(testMenu())[1].Schema)

	assert.Equal(t, "object", field["type"])
	assert.Equal(t, []string{"court"}, field["required"])
	props := field["properties"].(map[string]map[string]any)
	assert.Equal(t, "string", props["court"]["type"])
	assert.Len(t, props["court"]["enum"], 2)

	assert.Len(t, openAiTools(menuTools(testMenu())), 2)
}

func TestSchemaTypeString(t *testing.T) {
	tests := []struct {
		t        SchemaType
		expected string
	}{
		{SchemaTypeObject, "object"},
		{SchemaTypeArray, "array"},
		{SchemaTypeBoolean, "boolean"},
		{SchemaTypeInteger, "integer"},
		{SchemaTypeString, "string"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.t.String())
	}
}
