package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kotrzina/dining-menu/pkg/scraper"
)

// menuTools lets the model look into other courts of the menu than the one in the prompt.
func menuTools(m scraper.DailyMenu) []Tool {
	courts := make([]interface{}, len(m.Courts))
	for i, c := range m.Courts {
		courts[i] = c.DiningCourt
	}

	return []Tool{
		{
			Name:        "list_dining_courts",
			Description: "Lists dining courts serving the meal period with the number of food items available.",
			HasSchema:   false,
			Schema: Property{
				Type:       SchemaTypeObject,
				Properties: map[string]Property{},
			},
			Fn: func(_ string) (string, error) {
				if len(m.Courts) == 0 {
					return "No dining court serves this meal period.", nil
				}

				var sb strings.Builder
				for _, c := range m.Courts {
					sb.WriteString(fmt.Sprintf("%s: %d items in %d stations\n", c.DiningCourt, c.TotalItems, len(c.Stations)))
				}
				return sb.String(), nil
			},
		},
		{
			Name:        "get_court_menu",
			Description: "Returns all food items of the dining court with their serving size, calories, protein, carbs, fiber and cholesterol.",
			HasSchema:   true,
			Schema: Property{
				Type: SchemaTypeObject,
				Properties: map[string]Property{
					"court": {
						Type:        SchemaTypeString,
						Description: "Name of the dining court",
						Enum:        courts,
					},
				},
				Required: []string{"court"},
			},
			Fn: func(input string) (string, error) {
				var req struct {
					Court string `json:"court"`
				}
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("could not parse tool input: %w", err)
				}

				for _, c := range m.Courts {
					if strings.EqualFold(c.DiningCourt, strings.TrimSpace(req.Court)) {
						return FormatCourt(c), nil
					}
				}
				return fmt.Sprintf("Dining court %s does not serve this meal period.", req.Court), nil
			},
		},
	}
}
