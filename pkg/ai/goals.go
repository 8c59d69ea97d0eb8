package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Goals are the dietary targets of a meal plan.
type Goals struct {
	TargetCalories      int      `json:"target_calories"`
	ProteinPercentage   int      `json:"protein_percentage"` // % of total calories
	CarbPercentage      int      `json:"carb_percentage"`
	FatPercentage       int      `json:"fat_percentage"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	MealsPerDay         int      `json:"meals_per_day"`
	Notes               string   `json:"notes"`
}

// Macros are daily macronutrient targets in grams.
type Macros struct {
	Protein int `json:"protein_g"`
	Carbs   int `json:"carbs_g"`
	Fat     int `json:"fat_g"`
}

var ErrInvalidGoals = errors.New("invalid goals")

// WithDefaults fills unset goals: 2000 kcal, 25/45/30 % and 3 meals.
func (g Goals) WithDefaults() Goals {
	if g.TargetCalories == 0 {
		g.TargetCalories = 2000
	}
	if g.ProteinPercentage == 0 && g.CarbPercentage == 0 && g.FatPercentage == 0 {
		g.ProteinPercentage = 25
		g.CarbPercentage = 45
		g.FatPercentage = 30
	}
	if g.MealsPerDay == 0 {
		g.MealsPerDay = 3
	}

	restrictions := make([]string, 0, len(g.DietaryRestrictions))
	for _, r := range g.DietaryRestrictions {
		if r = strings.TrimSpace(r); r != "" {
			restrictions = append(restrictions, r)
		}
	}
	g.DietaryRestrictions = restrictions

	return g
}

func (g Goals) Validate() error {
	if g.TargetCalories <= 0 || g.TargetCalories > 10000 {
		return fmt.Errorf("%w: calorie target %d out of range", ErrInvalidGoals, g.TargetCalories)
	}
	for name, pct := range map[string]int{"protein": g.ProteinPercentage, "carb": g.CarbPercentage, "fat": g.FatPercentage} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: %s percentage %d out of range", ErrInvalidGoals, name, pct)
		}
	}
	if g.MealsPerDay < 1 || g.MealsPerDay > 6 {
		return fmt.Errorf("%w: %d meals per day", ErrInvalidGoals, g.MealsPerDay)
	}

	return nil
}

// BalancedMacros reports whether the percentages add up to 100.
func (g Goals) BalancedMacros() bool {
	return g.ProteinPercentage+g.CarbPercentage+g.FatPercentage == 100
}

// MacroTargets converts the percentages into grams using 4 kcal per gram of protein
// and carbohydrates and 9 kcal per gram of fat. Fractions are truncated.
func MacroTargets(g Goals) Macros {
	grams := func(pct, kcalPerGram int) int {
		return int(decimal.NewFromInt(int64(g.TargetCalories)).
			Mul(decimal.NewFromInt(int64(pct))).
			Div(decimal.NewFromInt(int64(100 * kcalPerGram))).
			IntPart())
	}

	return Macros{
		Protein: grams(g.ProteinPercentage, 4),
		Carbs:   grams(g.CarbPercentage, 4),
		Fat:     grams(g.FatPercentage, 9),
	}
}
