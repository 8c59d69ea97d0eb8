package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kotrzina/dining-menu/pkg/menu"
)

// MenuItem is one food item of a court menu: its identity plus nutrition data.
// It is serialised as a single flat object.
type MenuItem struct {
	menu.FoodListing
	Court          string
	MealTime       string
	Nutrition      menu.NutritionRecord
	NutritionError string // set when the detail page could not be rendered
}

type StationMenu struct {
	Name  string
	Items []MenuItem
}

// Stations keeps stations in page order; as JSON it is an object keyed by station name.
type Stations []StationMenu

type CourtMenu struct {
	DiningCourt string   `json:"dining_court"`
	MealTime    string   `json:"meal_time"`
	Date        string   `json:"date"`
	Stations    Stations `json:"stations"`
	TotalItems  int      `json:"total_items"`
	Error       string   `json:"error,omitempty"`
}

// DailyMenu holds every court for one date and meal period.
// As JSON it is an object keyed by court name.
type DailyMenu struct {
	MealTime string
	Date     string
	Courts   []CourtMenu
}

func (item MenuItem) MarshalJSON() ([]byte, error) {
	out := item.Nutrition.Flatten()
	out["name"] = item.Name
	out["station"] = item.Station
	out["court"] = item.Court
	out["meal_time"] = item.MealTime
	out["nutrition_url"] = item.DetailReference
	if item.NutritionError != "" {
		out["nutrition_error"] = item.NutritionError
	}

	return json.Marshal(out)
}

func (item *MenuItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("could not decode menu item: %w", err)
	}

	record, err := menu.RecordFromRaw(raw)
	if err != nil {
		return fmt.Errorf("could not decode menu item nutrition: %w", err)
	}

	decoded := MenuItem{Nutrition: record}
	identity := map[string]*string{
		"name":            &decoded.Name,
		"station":         &decoded.Station,
		"court":           &decoded.Court,
		"meal_time":       &decoded.MealTime,
		"nutrition_url":   &decoded.DetailReference,
		"nutrition_error": &decoded.NutritionError,
	}
	for key, target := range identity {
		value, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, target); err != nil {
			return fmt.Errorf("could not decode menu item %s: %w", key, err)
		}
	}

	*item = decoded
	return nil
}

func (s Stations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, station := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		items := station.Items
		if items == nil {
			items = []MenuItem{}
		}
		if err := writeMember(&buf, station.Name, items); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (s *Stations) UnmarshalJSON(data []byte) error {
	stations := Stations{}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var items []MenuItem
		if err := dec.Decode(&items); err != nil {
			return err
		}
		stations = append(stations, StationMenu{Name: key, Items: items})
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not decode stations: %w", err)
	}

	*s = stations
	return nil
}

func (m DailyMenu) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, court := range m.Courts {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, court.DiningCourt, court); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (m *DailyMenu) UnmarshalJSON(data []byte) error {
	decoded := DailyMenu{Courts: []CourtMenu{}}
	err := decodeOrderedObject(data, func(key string, dec *json.Decoder) error {
		var court CourtMenu
		if err := dec.Decode(&court); err != nil {
			return err
		}
		if court.DiningCourt == "" {
			court.DiningCourt = key
		}
		decoded.Courts = append(decoded.Courts, court)
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not decode daily menu: %w", err)
	}

	if len(decoded.Courts) > 0 {
		decoded.MealTime = decoded.Courts[0].MealTime
		decoded.Date = decoded.Courts[0].Date
	}

	*m = decoded
	return nil
}

// Court returns the menu of the named court.
func (m DailyMenu) Court(name string) (CourtMenu, bool) {
	for _, c := range m.Courts {
		if c.DiningCourt == name {
			return c, true
		}
	}

	return CourtMenu{}, false
}

// TotalItems counts items over all courts.
func (m DailyMenu) TotalItems() int {
	total := 0
	for _, c := range m.Courts {
		total += c.TotalItems
	}

	return total
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}

	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)

	return nil
}

// decodeOrderedObject calls fn for every member of a JSON object in document order.
func decodeOrderedObject(data []byte, fn func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil // null
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key, dec); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
