package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/utils"
)

// FileName returns purdue_{meal}_{YYYY-MM-DD}.json for the menu.
func FileName(m DailyMenu) string {
	return fmt.Sprintf("purdue_%s_%s.json", utils.Slug(m.MealTime), strings.ReplaceAll(m.Date, "/", "-"))
}

// WriteFile stores the menu as indented JSON into dir and returns the file path.
func WriteFile(dir string, m DailyMenu) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create output directory: %w", err)
	}

	content, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not marshal menu: %w", err)
	}

	path := filepath.Join(dir, FileName(m))
	if err := os.WriteFile(path, content, 0o644); err != nil { //nolint: gosec
		return "", fmt.Errorf("could not write menu file: %w", err)
	}

	return path, nil
}

var summaryFields = []struct {
	title string
	field menu.Field
	unit  string
}{
	{"Protein", menu.FieldProtein, "g"},
	{"Total Carbs", menu.FieldTotalCarbs, "g"},
	{"Dietary Fiber", menu.FieldDietaryFiber, "g"},
	{"Cholesterol", menu.FieldCholesterol, "mg"},
}

// Summary is a human readable overview of the menu with the essential nutrition data
// of every item.
func Summary(m DailyMenu) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Nutrition data - %s %s\n", strings.ToUpper(m.MealTime), m.Date))

	for _, court := range m.Courts {
		sb.WriteString(fmt.Sprintf("\n%s: %d stations, %d items total\n", court.DiningCourt, len(court.Stations), court.TotalItems))
		if court.Error != "" {
			sb.WriteString(fmt.Sprintf("  error: %s\n", court.Error))
		}

		for _, station := range court.Stations {
			sb.WriteString(fmt.Sprintf("\n  %s (%d items):\n", station.Name, len(station.Items)))
			for _, item := range station.Items {
				sb.WriteString(fmt.Sprintf("    - %s\n", item.Name))

				serving := "N/A"
				if item.Nutrition.ServingSize != nil {
					serving = *item.Nutrition.ServingSize
				}
				sb.WriteString(fmt.Sprintf("      Serving Size: %s\n", serving))

				if item.Nutrition.TotalCalories != nil {
					sb.WriteString(fmt.Sprintf("      Total Calories: %d\n", *item.Nutrition.TotalCalories))
				}
				for _, f := range summaryFields {
					if v, ok := item.Nutrition.Get(f.field); ok {
						sb.WriteString(fmt.Sprintf("      %s: %g%s\n", f.title, v, f.unit))
					}
				}
			}
		}
	}

	return sb.String()
}
