package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kotrzina/dining-menu/pkg/ai"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/utils"
)

const (
	plansLimit = 500 // newest meal plans kept by every store
	userLimit  = 500 // newest goals and meals kept per user
	mealsTake  = 50  // meals returned by GetMeals
)

var ErrNotFound = errors.New("not found")

// Plan is a generated meal plan.
type Plan struct {
	ID        string    `json:"id"`
	MealTime  string    `json:"meal_time"`
	Date      string    `json:"date"`
	Provider  string    `json:"provider"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// GoalsEntry is one saved version of a user's nutrition goals.
type GoalsEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Goals     ai.Goals  `json:"goals"`
	CreatedAt time.Time `json:"created_at"`
}

// Meal is an eaten meal in a user's history.
type Meal struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Court      string    `json:"court,omitempty"`
	MealTime   string    `json:"meal_time,omitempty"`
	Calories   int       `json:"total_calories"`
	Protein    float64   `json:"protein_g"`
	Carbs      float64   `json:"total_carbs_g"`
	Fat        float64   `json:"total_fat_g"`
	ConsumedAt time.Time `json:"consumed_at"`
}

type Storage interface {
	SetMenu(key string, menu scraper.DailyMenu) error // set scraped menu
	GetMenu(key string) (scraper.DailyMenu, error)    // get scraped menu, ErrNotFound when missing

	SetLastScrape(at time.Time) error  // set last finished scrape
	GetLastScrape() (time.Time, error) // get last finished scrape

	AddPlan(plan Plan) error   // add meal plan
	GetPlans() ([]Plan, error) // get meal plans from oldest to newest

	SaveGoals(entry GoalsEntry) error             // save new version of user goals
	GetGoals(userID string) ([]GoalsEntry, error) // get user goals from newest to oldest
	AddMeal(meal Meal) error                      // add meal to user history
	GetMeals(userID string) ([]Meal, error)       // get newest eaten meals first
}

// MenuKey identifies the menu of one meal period on one date, e.g. menu:late-lunch:2025-09-01
func MenuKey(meal string, date time.Time) string {
	return "menu:" + utils.Slug(meal) + ":" + date.Format("2006-01-02")
}

// storedMenu keeps the meal period and date next to the courts.
// A menu without courts would lose them in the plain court object.
type storedMenu struct {
	MealTime string            `json:"meal_time"`
	Date     string            `json:"date"`
	Courts   scraper.DailyMenu `json:"courts"`
}

func encodeMenu(menu scraper.DailyMenu) ([]byte, error) {
	data, err := json.Marshal(storedMenu{MealTime: menu.MealTime, Date: menu.Date, Courts: menu})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal menu: %w", err)
	}
	return data, nil
}

func decodeMenu(data []byte) (scraper.DailyMenu, error) {
	var stored storedMenu
	if err := json.Unmarshal(data, &stored); err != nil {
		return scraper.DailyMenu{}, fmt.Errorf("failed to unmarshal menu: %w", err)
	}

	menu := stored.Courts
	if menu.Courts == nil {
		menu.Courts = []scraper.CourtMenu{}
	}
	menu.MealTime = stored.MealTime
	menu.Date = stored.Date
	return menu, nil
}
