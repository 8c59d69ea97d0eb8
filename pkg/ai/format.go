package ai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/scraper"
)

// PickCourt returns the first court with any items, or the first court when all are
// empty. ok is false for a menu without courts.
func PickCourt(m scraper.DailyMenu) (scraper.CourtMenu, bool) {
	for _, c := range m.Courts {
		if c.TotalItems > 0 {
			return c, true
		}
	}
	if len(m.Courts) > 0 {
		return m.Courts[0], true
	}

	return scraper.CourtMenu{}, false
}

// FormatCourt renders a court menu as plain text for a language model:
//
//	Station: Grill
//	  - Veggie Burger (1 each): 310 cal, 21g protein, 35g carbs, 6g fiber, 0mg cholesterol
func FormatCourt(c scraper.CourtMenu) string {
	var sb strings.Builder
	name := c.DiningCourt
	if name == "" {
		name = "Unknown"
	}
	sb.WriteString(fmt.Sprintf("Dining Court: %s\n\n", name))

	for _, station := range c.Stations {
		sb.WriteString(fmt.Sprintf("Station: %s\n", station.Name))
		for _, item := range station.Items {
			n := item.Nutrition
			serving := "N/A"
			if n.ServingSize != nil {
				serving = *n.ServingSize
			}
			calories := "N/A"
			if n.TotalCalories != nil {
				calories = strconv.Itoa(*n.TotalCalories)
			}

			sb.WriteString(fmt.Sprintf("  - %s (%s): %s cal, %sg protein, %sg carbs, %sg fiber, %smg cholesterol\n",
				item.Name, serving, calories,
				formatNutrient(n, menu.FieldProtein),
				formatNutrient(n, menu.FieldTotalCarbs),
				formatNutrient(n, menu.FieldDietaryFiber),
				formatNutrient(n, menu.FieldCholesterol),
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatNutrient(r menu.NutritionRecord, f menu.Field) string {
	v, ok := r.Get(f)
	if !ok {
		return "N/A"
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}
