package menu

import "strings"

// Field is a canonical nutrient key. The unit is part of the name.
type Field string

const (
	FieldTotalFat     Field = "total_fat_g"
	FieldSaturatedFat Field = "saturated_fat_g"
	FieldTransFat     Field = "trans_fat_g"
	FieldCholesterol  Field = "cholesterol_mg"
	FieldSodium       Field = "sodium_mg"
	FieldTotalCarbs   Field = "total_carbs_g"
	FieldDietaryFiber Field = "dietary_fiber_g"
	FieldAddedSugar   Field = "added_sugar_g"
	FieldTotalSugar   Field = "total_sugar_g"
	FieldProtein      Field = "protein_g"
	FieldVitaminD     Field = "vitamin_d_mcg"
	FieldCalcium      Field = "calcium_mg"
	FieldIron         Field = "iron_mg"
	FieldPotassium    Field = "potassium_mg"
	FieldVitaminA     Field = "vitamin_a_mcg"
	FieldVitaminC     Field = "vitamin_c_mg"
	FieldThiamin      Field = "thiamin_mg"
	FieldRiboflavin   Field = "riboflavin_mg"
	FieldNiacin       Field = "niacin_mg"
	FieldVitaminB6    Field = "vitamin_b6_mg"
	FieldFolate       Field = "folate_mcg"
	FieldVitaminB12   Field = "vitamin_b12_mcg"
	FieldPhosphorus   Field = "phosphorus_mg"
	FieldMagnesium    Field = "magnesium_mg"
	FieldZinc         Field = "zinc_mg"
)

// JSON keys of the non-nutrient members of a record.
const (
	KeyServingSize   = "serving_size"
	KeyTotalCalories = "total_calories"
)

type labelRule struct {
	field Field
	match func(label string) bool
}

func containsAny(substrings ...string) func(string) bool {
	return func(label string) bool {
		for _, s := range substrings {
			if strings.Contains(label, s) {
				return true
			}
		}
		return false
	}
}

// labelRules is evaluated top to bottom and the first match wins.
// Added sugar must stay above the generic sugar rule.
var labelRules = []labelRule{
	{FieldTotalFat, containsAny("total fat")},
	{FieldSaturatedFat, containsAny("saturated fat")},
	{FieldTransFat, containsAny("trans fat")},
	{FieldCholesterol, containsAny("cholesterol")},
	{FieldSodium, containsAny("sodium")},
	{FieldTotalCarbs, containsAny("total carbohydrate")},
	{FieldDietaryFiber, containsAny("dietary fiber")},
	{FieldAddedSugar, containsAny("added sugar")},
	{FieldTotalSugar, func(label string) bool {
		return strings.Contains(label, "total sugar") ||
			(strings.Contains(label, "sugar") && !strings.Contains(label, "added"))
	}},
	{FieldProtein, containsAny("protein")},
	{FieldVitaminD, containsAny("vitamin d")},
	{FieldCalcium, containsAny("calcium")},
	{FieldIron, containsAny("iron")},
	{FieldPotassium, containsAny("potassium")},
	{FieldVitaminA, containsAny("vitamin a")},
	{FieldVitaminC, containsAny("vitamin c")},
	{FieldThiamin, containsAny("thiamin")},
	{FieldRiboflavin, containsAny("riboflavin")},
	{FieldNiacin, containsAny("niacin")},
	{FieldVitaminB6, containsAny("vitamin b6")},
	{FieldFolate, containsAny("folate")},
	{FieldVitaminB12, containsAny("vitamin b12")},
	{FieldPhosphorus, containsAny("phosphorus")},
	{FieldMagnesium, containsAny("magnesium")},
	{FieldZinc, containsAny("zinc")},
}

// MatchField maps a nutrition table label to its canonical field.
func MatchField(label string) (Field, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, rule := range labelRules {
		if rule.match(label) {
			return rule.field, true
		}
	}

	return "", false
}

// Fields returns all canonical fields in table order.
func Fields() []Field {
	fields := make([]Field, len(labelRules))
	for i, rule := range labelRules {
		fields[i] = rule.field
	}

	return fields
}

func isField(key string) bool {
	for _, rule := range labelRules {
		if string(rule.field) == key {
			return true
		}
	}

	return false
}
