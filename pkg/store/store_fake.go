package store

import (
	"sort"
	"sync"
	"time"

	"github.com/kotrzina/dining-menu/pkg/scraper"
)

// FakeStore keeps everything in memory.
// It is used for testing purposes and when no persistent store is configured.
type FakeStore struct {
	mu         sync.Mutex
	menus      map[string]scraper.DailyMenu
	plans      []Plan
	goals      map[string][]GoalsEntry
	meals      map[string][]Meal
	lastScrape time.Time
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		menus: map[string]scraper.DailyMenu{},
		plans: []Plan{},
		goals: map[string][]GoalsEntry{},
		meals: map[string][]Meal{},
	}
}

func (s *FakeStore) SetMenu(key string, menu scraper.DailyMenu) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.menus == nil {
		s.menus = map[string]scraper.DailyMenu{}
	}
	s.menus[key] = menu
	return nil
}

func (s *FakeStore) GetMenu(key string) (scraper.DailyMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	menu, ok := s.menus[key]
	if !ok {
		return scraper.DailyMenu{}, ErrNotFound
	}
	return menu, nil
}

func (s *FakeStore) SetLastScrape(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastScrape = at
	return nil
}

func (s *FakeStore) GetLastScrape() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastScrape.IsZero() {
		return time.Time{}, ErrNotFound
	}
	return s.lastScrape, nil
}

func (s *FakeStore) AddPlan(plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plans = append(s.plans, plan)
	if len(s.plans) > plansLimit {
		s.plans = s.plans[len(s.plans)-plansLimit:]
	}
	return nil
}

func (s *FakeStore) GetPlans() ([]Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plans := make([]Plan, len(s.plans))
	copy(plans, s.plans)
	return plans, nil
}

func (s *FakeStore) SaveGoals(entry GoalsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.goals == nil {
		s.goals = map[string][]GoalsEntry{}
	}
	entries := append(s.goals[entry.UserID], entry)
	if len(entries) > userLimit {
		entries = entries[len(entries)-userLimit:]
	}
	s.goals[entry.UserID] = entries
	return nil
}

func (s *FakeStore) GetGoals(userID string) ([]GoalsEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.goals[userID]
	out := make([]GoalsEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *FakeStore) AddMeal(meal Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meals == nil {
		s.meals = map[string][]Meal{}
	}
	meals := append(s.meals[meal.UserID], meal)
	sort.SliceStable(meals, func(i, j int) bool {
		return meals[i].ConsumedAt.After(meals[j].ConsumedAt)
	})
	if len(meals) > userLimit {
		meals = meals[:userLimit]
	}
	s.meals[meal.UserID] = meals
	return nil
}

func (s *FakeStore) GetMeals(userID string) ([]Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meals := s.meals[userID]
	if len(meals) > mealsTake {
		meals = meals[:mealsTake]
	}
	out := make([]Meal, len(meals))
	copy(out, meals)
	return out, nil
}
