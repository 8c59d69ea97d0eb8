package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Court is a dining court together with the meal periods it serves.
// An empty MealTimes list means the court serves every regular period.
type Court struct {
	Name      string   `yaml:"name"`
	MealTimes []string `yaml:"meal_times"`
}

// Serves reports whether the court is open for the meal period.
func (c Court) Serves(meal string) bool {
	if len(c.MealTimes) == 0 {
		return !strings.EqualFold(meal, "late lunch")
	}

	for _, m := range c.MealTimes {
		if strings.EqualFold(strings.TrimSpace(m), strings.TrimSpace(meal)) {
			return true
		}
	}

	return false
}

type courtsFile struct {
	Courts []Court `yaml:"courts"`
}

// LoadCourts reads a YAML court catalogue:
//
//	courts:
//	  - name: Hillenbrand
//	    meal_times: [breakfast, lunch, late lunch, dinner]
func LoadCourts(path string) ([]Court, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read courts file: %w", err)
	}

	var file courtsFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("could not unmarshal courts file: %w", err)
	}

	courts := make([]Court, 0, len(file.Courts))
	for _, c := range file.Courts {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name != "" {
			courts = append(courts, c)
		}
	}

	return courts, nil
}

// lateLunchCourts are the only courts serving late lunch.
var lateLunchCourts = []string{"Hillenbrand", "Windsor"}

// parseCourts parses a comma separated list of court names.
func parseCourts(s string) []Court {
	names := parseList(s)
	courts := make([]Court, len(names))
	for i, name := range names {
		courts[i] = Court{Name: name}
		for _, late := range lateLunchCourts {
			if strings.EqualFold(name, late) {
				courts[i].MealTimes = []string{"breakfast", "lunch", "late lunch", "dinner"}
			}
		}
	}

	return courts
}

// CourtsFor returns the courts serving the meal period, keeping configuration order.
func (c *Config) CourtsFor(meal string) []Court {
	out := []Court{}
	for _, court := range c.Courts {
		if court.Serves(meal) {
			out = append(out, court)
		}
	}

	return out
}

// FindCourt looks a court up by name, ignoring case.
func (c *Config) FindCourt(name string) (Court, bool) {
	for _, court := range c.Courts {
		if strings.EqualFold(court.Name, strings.TrimSpace(name)) {
			return court, true
		}
	}

	return Court{}, false
}
