package menu

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detailPage(serving, calories string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"nutrition\">")
	if serving != "" {
		fmt.Fprintf(&b, `<span class="nutrition-feature-servingSize-quantity"> %s </span>`, serving)
	}
	if calories != "" {
		fmt.Fprintf(&b, `<span class="nutrition-feature-calories-quantity">%s</span>`, calories)
	}
	for _, row := range rows {
		fmt.Fprintf(&b,
			`<div class="nutrition-table-row"><span class="table-row-label">%s</span><span class="table-row-labelValue">%s</span></div>`,
			row[0], row[1])
	}
	b.WriteString("</div></body></html>")

	return b.String()
}

func normalize(t *testing.T, markup string) NutritionRecord {
	t.Helper()

	doc, err := ParseDocument(markup)
	require.NoError(t, err)

	return NormalizeNutrition(doc)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestNormalizeNutritionExample(t *testing.T) {
	record := normalize(t, detailPage("1 bowl (250g)", "450", [][2]string{
		{"Total Fat", "12g"},
		{"Protein", "20g"},
		{"Sodium", "600mg"},
		{"Total Sugars", "<1g"},
	}))

	assert.Equal(t, NutritionRecord{
		ServingSize:   strPtr("1 bowl (250g)"),
		TotalCalories: intPtr(450),
		Nutrients: map[Field]float64{
			FieldTotalFat:   12.0,
			FieldProtein:    20.0,
			FieldSodium:     600.0,
			FieldTotalSugar: 0.5,
		},
	}, record)
}

func TestNormalizeNutritionValues(t *testing.T) {
	record := normalize(t, detailPage("", "", [][2]string{
		{"Saturated Fat", "< 1g"},
		{"Calcium", "15%"},
		{"Iron", "2.5mg"},
		{"Potassium", "80mg 2%"},
		{"Cholesterol", "--"},
		{"Glycemic Load", "7"},
		{"Vitamin B12", "0.4mcg"},
	}))

	assert.Nil(t, record.ServingSize)
	assert.Nil(t, record.TotalCalories)
	assert.Equal(t, map[Field]float64{
		FieldSaturatedFat: 0.5,
		FieldIron:         2.5,
		FieldVitaminB12:   0.4,
	}, record.Nutrients)
}

func TestNormalizeNutritionAddedSugar(t *testing.T) {
	record := normalize(t, detailPage("", "", [][2]string{
		{"Includes Added Sugars (total sugar)", "6g"},
	}))

	v, ok := record.Get(FieldAddedSugar)
	assert.True(t, ok)
	assert.InDelta(t, 6.0, v, 0.0001)

	_, ok = record.Get(FieldTotalSugar)
	assert.False(t, ok)
}

func TestNormalizeNutritionCalories(t *testing.T) {
	tests := []struct {
		name     string
		calories string
		expected *int
	}{
		{"integer", "320", intPtr(320)},
		{"padded", "  90 ", intPtr(90)},
		{"decimal", "12.5", nil},
		{"text", "N/A", nil},
		{"empty", " ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := normalize(t, detailPage("1 each", tt.calories, [][2]string{{"Protein", "3g"}}))
			assert.Equal(t, tt.expected, record.TotalCalories)
			// the rest of the record survives a bad calorie value
			assert.Equal(t, strPtr("1 each"), record.ServingSize)
			assert.Len(t, record.Nutrients, 1)
		})
	}
}

func TestNormalizeNutritionNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"<html></html>",
		`<div class="nutrition-table-row"></div>`,
		`<div class="nutrition-table-row"><span class="table-row-label">Protein</span></div>`,
		`<div class="nutrition-table-row"><span class="table-row-labelValue">4g</span></div>`,
		`<span class="nutrition-feature-servingSize-quantity"></span>`,
		`</span><<>>&&#;<div class="nutrition-table-row"><span class="table-row-label">`,
	}

	for _, input := range inputs {
		record := normalize(t, input)
		assert.Nil(t, record.ServingSize, input)
		assert.Nil(t, record.TotalCalories, input)
		assert.NotNil(t, record.Nutrients, input)
		assert.Empty(t, record.Nutrients, input)
		assert.True(t, record.IsEmpty(), input)
	}

	assert.True(t, NormalizeNutrition(nil).IsEmpty())
}

func TestNormalizeNutritionAllFields(t *testing.T) {
	labels := map[string]Field{
		"Total Fat":          FieldTotalFat,
		"Saturated Fat":      FieldSaturatedFat,
		"Trans Fat":          FieldTransFat,
		"Cholesterol":        FieldCholesterol,
		"Sodium":             FieldSodium,
		"Total Carbohydrate": FieldTotalCarbs,
		"Dietary Fiber":      FieldDietaryFiber,
		"Added Sugar":        FieldAddedSugar,
		"Sugars":             FieldTotalSugar,
		"Protein":            FieldProtein,
		"Vitamin D":          FieldVitaminD,
		"Calcium":            FieldCalcium,
		"Iron":               FieldIron,
		"Potassium":          FieldPotassium,
		"Vitamin A":          FieldVitaminA,
		"Vitamin C":          FieldVitaminC,
		"Thiamin":            FieldThiamin,
		"Riboflavin":         FieldRiboflavin,
		"Niacin":             FieldNiacin,
		"Vitamin B6":         FieldVitaminB6,
		"Folate":             FieldFolate,
		"Vitamin B12":        FieldVitaminB12,
		"Phosphorus":         FieldPhosphorus,
		"Magnesium":          FieldMagnesium,
		"Zinc":               FieldZinc,
	}

	rows := make([][2]string, 0, len(labels))
	for label := range labels {
		rows = append(rows, [2]string{label, "1.5"})
	}

	record := normalize(t, detailPage("", "", rows))
	require.Len(t, record.Nutrients, len(Fields()))
	for label, field := range labels {
		v, ok := record.Get(field)
		assert.True(t, ok, label)
		assert.InDelta(t, 1.5, v, 0.0001, label)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"12g", 12, true},
		{"< 1g", 0.5, true},
		{"<1g", 0.5, true},
		{"less than 1 mg", 0.5, true},
		{"20%", 0, false},
		{"600 mg", 600, true},
		{"1,200mg", 1200, true},
		{"0.3mcg", 0.3, true},
		{"1.2.3g", 1.2, true},
		{"12g5", 12, true},
		{"1e3g", 1, true},
		{"~5g", 0, false},
		{"g", 0, false},
		{".", 0, false},
		{"", 0, false},
		{"  ", 0, false},
		{"trace", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			value, ok := ParseValue(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, value, 0.0001)
		})
	}
}

func TestMatchField(t *testing.T) {
	tests := []struct {
		label    string
		expected Field
		ok       bool
	}{
		{"Total Fat", FieldTotalFat, true},
		{"  SODIUM ", FieldSodium, true},
		{"Total Sugars", FieldTotalSugar, true},
		{"Added Sugars", FieldAddedSugar, true},
		{"Total Sugar incl. added sugar", FieldAddedSugar, true},
		{"Sugar Alcohol (added)", "", false},
		{"Vitamin B6", FieldVitaminB6, true},
		{"Vitamin B12", FieldVitaminB12, true},
		{"Calories from Fat", "", false},
		{"Caffeine", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			field, ok := MatchField(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, field)
		})
	}
}

func TestNutritionRecordJSONRoundTrip(t *testing.T) {
	record := normalize(t, detailPage("1 cup (240g)", "210", [][2]string{
		{"Total Fat", "7.25g"},
		{"Added Sugars", "<1g"},
		{"Vitamin D", "0.1mcg"},
	}))

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"serving_size": "1 cup (240g)",
		"total_calories": 210,
		"total_fat_g": 7.25,
		"added_sugar_g": 0.5,
		"vitamin_d_mcg": 0.1
	}`, string(data))

	var decoded NutritionRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, record, decoded)
}

func TestNutritionRecordUnmarshalDropsUnknownKeys(t *testing.T) {
	var record NutritionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"protein_g": 4, "caffeine_mg": 80, "name": "Cola"}`), &record))

	assert.Equal(t, map[Field]float64{FieldProtein: 4}, record.Nutrients)
	assert.Nil(t, record.ServingSize)

	assert.Error(t, json.Unmarshal([]byte(`{"protein_g": "four"}`), &record))
}
