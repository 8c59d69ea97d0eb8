package menu

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/kotrzina/dining-menu/pkg/utils"
	"golang.org/x/net/html"
)

// lessThanValue is stored for values printed as "< 1g".
const lessThanValue = 0.5

// NutritionRecord is the canonical nutrition data of one food item.
// Nutrients only ever holds canonical fields.
type NutritionRecord struct {
	ServingSize   *string
	TotalCalories *int
	Nutrients     map[Field]float64
}

var (
	servingSizeExpr = byClass("*", "nutrition-feature-servingSize-quantity")
	caloriesExpr    = byClass("*", "nutrition-feature-calories-quantity")
	rowExpr         = byClass("*", "nutrition-table-row")
	rowLabelExpr    = byClass("*", "table-row-label")
	rowValueExpr    = byClass("*", "table-row-labelValue")
)

// NormalizeNutrition reads the nutrition facts of a rendered item detail page.
// Malformed or unknown rows are skipped, so the result may be partial or empty.
func NormalizeNutrition(doc *html.Node) NutritionRecord {
	record := NutritionRecord{
		Nutrients: map[Field]float64{},
	}
	if doc == nil {
		return record
	}

	if serving, ok := firstText(doc, servingSizeExpr); ok && serving != "" {
		record.ServingSize = &serving
	}

	if text, ok := firstText(doc, caloriesExpr); ok {
		if calories, err := strconv.Atoi(text); err == nil && calories >= 0 {
			record.TotalCalories = &calories
		}
	}

	for _, row := range htmlquery.QuerySelectorAll(doc, rowExpr) {
		label, ok := firstText(row, rowLabelExpr)
		if !ok {
			continue
		}
		valueText, ok := firstText(row, rowValueExpr)
		if !ok {
			continue
		}

		value, ok := ParseValue(valueText)
		if !ok {
			continue
		}

		field, ok := MatchField(label)
		if !ok {
			continue
		}

		record.Nutrients[field] = value
	}

	return record
}

// ParseValue converts a nutrition table value such as "12g", "< 1g" or "600mg"
// into its magnitude. Percentages are rejected.
func ParseValue(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if strings.Contains(lower, "<") || strings.Contains(lower, "less than") {
		return lessThanValue, true
	}

	if strings.Contains(lower, "%") {
		return 0, false
	}

	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0, false
	}

	numeric := utils.Strip(tokens[0])
	if strings.Trim(numeric, ".") == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}

// Get returns the value of a canonical field.
func (r NutritionRecord) Get(field Field) (float64, bool) {
	v, ok := r.Nutrients[field]
	return v, ok
}

// IsEmpty reports whether the page carried no recognised nutrition data at all.
func (r NutritionRecord) IsEmpty() bool {
	return r.ServingSize == nil && r.TotalCalories == nil && len(r.Nutrients) == 0
}
