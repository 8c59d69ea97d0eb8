package menu

import (
	"encoding/json"
	"fmt"
)

// Flatten returns the record as a flat key/value mapping using the canonical JSON keys.
func (r NutritionRecord) Flatten() map[string]any {
	out := make(map[string]any, len(r.Nutrients)+2)
	if r.ServingSize != nil {
		out[KeyServingSize] = *r.ServingSize
	}
	if r.TotalCalories != nil {
		out[KeyTotalCalories] = *r.TotalCalories
	}
	for field, value := range r.Nutrients {
		out[string(field)] = value
	}

	return out
}

// RecordFromRaw picks the canonical nutrition members out of a decoded JSON object.
// Other members are ignored.
func RecordFromRaw(raw map[string]json.RawMessage) (NutritionRecord, error) {
	record := NutritionRecord{
		Nutrients: map[Field]float64{},
	}

	for key, value := range raw {
		switch {
		case key == KeyServingSize:
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return record, fmt.Errorf("could not decode %s: %w", key, err)
			}
			record.ServingSize = &s
		case key == KeyTotalCalories:
			var c int
			if err := json.Unmarshal(value, &c); err != nil {
				return record, fmt.Errorf("could not decode %s: %w", key, err)
			}
			record.TotalCalories = &c
		case isField(key):
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				return record, fmt.Errorf("could not decode %s: %w", key, err)
			}
			record.Nutrients[Field(key)] = f
		}
	}

	return record, nil
}

func (r NutritionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

func (r *NutritionRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("could not decode nutrition record: %w", err)
	}

	record, err := RecordFromRaw(raw)
	if err != nil {
		return err
	}

	*r = record
	return nil
}
