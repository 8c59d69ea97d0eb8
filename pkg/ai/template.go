package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/kotrzina/dining-menu/pkg/scraper"
)

const templateProvider = "template"

const (
	suggestionCourts   = 3
	suggestionStations = 2
	suggestionItems    = 2
	suggestionLimit    = 8
)

// Template writes a plan without any language model. It lists the goals and a few
// items of the menu as suggestions.
type Template struct{}

func (t *Template) Render(goals Goals, m scraper.DailyMenu, now time.Time) string {
	macros := MacroTargets(goals)

	restrictions := "None"
	if len(goals.DietaryRestrictions) > 0 {
		restrictions = strings.Join(goals.DietaryRestrictions, ", ")
	}

	lines := []string{
		"Your Personalized Meal Plan",
		fmt.Sprintf("Generated: %s", now.Format("2006-01-02 15:04")),
		"",
		fmt.Sprintf("Daily Calories Target: %d", goals.TargetCalories),
		fmt.Sprintf("Macro Targets: Protein: %d%% (%dg), Carbs: %d%% (%dg), Fats: %d%% (%dg)",
			goals.ProteinPercentage, macros.Protein,
			goals.CarbPercentage, macros.Carbs,
			goals.FatPercentage, macros.Fat),
		fmt.Sprintf("Dietary Preferences: %s", restrictions),
		fmt.Sprintf("Meals per Day: %d", goals.MealsPerDay),
	}
	if !goals.BalancedMacros() {
		lines = append(lines, "Warning: macro percentages do not add up to 100%.")
	}
	if goals.Notes != "" {
		lines = append(lines, "", "Notes:", goals.Notes)
	}

	lines = append(lines, "", "Menu-Based Suggestions:")
	if suggestions := suggest(m); len(suggestions) > 0 {
		lines = append(lines, suggestions...)
	} else {
		lines = append(lines, "- Suggestion A", "- Suggestion B", "- Suggestion C")
	}

	return strings.Join(lines, "\n") + "\n"
}

// suggest takes up to two items of two stations of the first three courts.
func suggest(m scraper.DailyMenu) []string {
	out := []string{}
	for ci, court := range m.Courts {
		if ci >= suggestionCourts {
			break
		}
		for si, station := range court.Stations {
			if si >= suggestionStations {
				break
			}
			for ii, item := range station.Items {
				if ii >= suggestionItems || len(out) >= suggestionLimit {
					break
				}
				if item.Name == "" {
					continue
				}

				label := fmt.Sprintf("- %s (%s • %s)", item.Name, court.DiningCourt, station.Name)
				if item.Nutrition.TotalCalories != nil {
					label += fmt.Sprintf(" - %d kcal", *item.Nutrition.TotalCalories)
				}
				out = append(out, label)
			}
		}
	}

	return out
}
