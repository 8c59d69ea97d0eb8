package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kotrzina/dining-menu/pkg/ai"
	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/dining"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/store"
	"github.com/kotrzina/dining-menu/pkg/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// userHeader names the user owning goals and meals.
const userHeader = "X-User"

type HandlerRepository struct {
	dining  *dining.Dining
	ai      *ai.Ai
	store   store.Storage
	config  *config.Config
	monitor *prometheus.Monitor
	logger  *logrus.Logger
}

// metricsHandler returns HTTP handler for metrics endpoint
func (hr *HandlerRepository) metricsHandler() http.Handler {
	return promhttp.HandlerFor(
		hr.monitor.Registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          hr.monitor.Registry,
		},
	)
}

func (hr *HandlerRepository) healthHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write(utils.GetOkJSON())
		if err != nil {
			hr.logger.Errorf("Could not write response: %v", err)
		}
	}
}

func (hr *HandlerRepository) courtsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		type court struct {
			Name      string   `json:"name"`
			MealTimes []string `json:"meal_times"`
		}

		out := struct {
			Courts     []court `json:"courts"`
			LastScrape string  `json:"last_scrape"`
		}{
			Courts:     []court{},
			LastScrape: utils.FormatDate(hr.dining.LastScrape()),
		}
		for _, c := range hr.dining.Courts() {
			meals := []string{}
			for _, m := range dining.MealTimes {
				if c.Serves(m) {
					meals = append(meals, m)
				}
			}
			out.Courts = append(out.Courts, court{Name: c.Name, MealTimes: meals})
		}

		hr.writeJSON(w, http.StatusOK, out)
	}
}

func (hr *HandlerRepository) menuHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		date, refresh, ok := hr.parseMenuQuery(w, r)
		if !ok {
			return
		}

		menu, err := hr.dining.GetMenu(r.Context(), r.URL.Query().Get("meal"), date, refresh)
		if err != nil {
			hr.writeMenuError(w, err)
			return
		}

		hr.writeJSON(w, http.StatusOK, menu)
	}
}

func (hr *HandlerRepository) courtMenuHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		date, refresh, ok := hr.parseMenuQuery(w, r)
		if !ok {
			return
		}

		court := mux.Vars(r)["court"]
		menu, err := hr.dining.GetCourtMenu(r.Context(), court, r.URL.Query().Get("meal"), date, refresh)
		if err != nil {
			hr.writeMenuError(w, err)
			return
		}

		hr.writeJSON(w, http.StatusOK, menu)
	}
}

func (hr *HandlerRepository) planHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hr.authorized(w, r) {
			return
		}

		var data struct {
			Goals *ai.Goals `json:"goals"`
			Meal  string    `json:"meal"`
			Date  string    `json:"date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			http.Error(w, "Could not read post body", http.StatusBadRequest)
			return
		}

		goals := ai.Goals{}
		if data.Goals != nil {
			goals = *data.Goals
		} else if user := r.Header.Get(userHeader); user != "" {
			// latest saved goals of the user
			saved, err := hr.store.GetGoals(user)
			if err != nil {
				hr.logger.Errorf("Could not read goals of %s: %v", user, err)
				http.Error(w, "Could not read goals", http.StatusInternalServerError)
				return
			}
			if len(saved) > 0 {
				goals = saved[0].Goals
			}
		}

		date := utils.Today()
		if data.Date != "" {
			parsed, err := scraper.ParseDate(data.Date)
			if err != nil {
				http.Error(w, "Invalid date", http.StatusBadRequest)
				return
			}
			date = parsed
		}

		menu, err := hr.dining.GetMenu(r.Context(), data.Meal, date, false)
		if err != nil {
			hr.writeMenuError(w, err)
			return
		}

		plan, err := hr.ai.GetPlan(r.Context(), goals, menu)
		if err != nil {
			if errors.Is(err, ai.ErrInvalidGoals) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			hr.logger.Errorf("Could not generate plan: %v", err)
			http.Error(w, "Could not generate plan", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		err = hr.store.AddPlan(store.Plan{
			ID:        uuid.NewString(),
			MealTime:  menu.MealTime,
			Date:      menu.Date,
			Provider:  plan.Provider,
			Text:      plan.Text,
			CreatedAt: now,
		})
		if err != nil {
			hr.logger.Errorf("Could not store plan: %v", err)
		}

		hr.writeJSON(w, http.StatusOK, struct {
			Success   bool   `json:"success"`
			PlanText  string `json:"planText"`
			Provider  string `json:"provider"`
			Court     string `json:"court"`
			Timestamp string `json:"timestamp"`
		}{
			Success:   true,
			PlanText:  plan.Text,
			Provider:  plan.Provider,
			Court:     plan.Court,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
	}
}

func (hr *HandlerRepository) plansHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		plans, err := hr.store.GetPlans()
		if err != nil {
			hr.logger.Errorf("Could not read plans: %v", err)
			http.Error(w, "Could not read plans", http.StatusInternalServerError)
			return
		}

		hr.writeJSON(w, http.StatusOK, plans)
	}
}

func (hr *HandlerRepository) goalsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := hr.user(w, r)
		if !ok {
			return
		}

		if r.Method == http.MethodGet {
			goals, err := hr.store.GetGoals(user)
			if err != nil {
				hr.logger.Errorf("Could not read goals of %s: %v", user, err)
				http.Error(w, "Could not read goals", http.StatusInternalServerError)
				return
			}
			hr.writeJSON(w, http.StatusOK, goals)
			return
		}

		var goals ai.Goals
		if err := json.NewDecoder(r.Body).Decode(&goals); err != nil {
			http.Error(w, "Could not read post body", http.StatusBadRequest)
			return
		}
		goals = goals.WithDefaults()
		if err := goals.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		entry := store.GoalsEntry{
			ID:        uuid.NewString(),
			UserID:    user,
			Goals:     goals,
			CreatedAt: time.Now(),
		}
		if err := hr.store.SaveGoals(entry); err != nil {
			hr.logger.Errorf("Could not save goals of %s: %v", user, err)
			http.Error(w, "Could not save goals", http.StatusInternalServerError)
			return
		}

		hr.writeJSON(w, http.StatusOK, entry)
	}
}

func (hr *HandlerRepository) mealsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := hr.user(w, r)
		if !ok {
			return
		}

		if r.Method == http.MethodGet {
			meals, err := hr.store.GetMeals(user)
			if err != nil {
				hr.logger.Errorf("Could not read meals of %s: %v", user, err)
				http.Error(w, "Could not read meals", http.StatusInternalServerError)
				return
			}
			hr.writeJSON(w, http.StatusOK, meals)
			return
		}

		var meal store.Meal
		if err := json.NewDecoder(r.Body).Decode(&meal); err != nil {
			http.Error(w, "Could not read post body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(meal.Name) == "" {
			http.Error(w, "Meal name is required", http.StatusBadRequest)
			return
		}
		if meal.Calories < 0 || meal.Protein < 0 || meal.Carbs < 0 || meal.Fat < 0 {
			http.Error(w, "Nutrition values can not be negative", http.StatusBadRequest)
			return
		}

		meal.ID = uuid.NewString()
		meal.UserID = user
		meal.Name = strings.TrimSpace(meal.Name)
		if meal.ConsumedAt.IsZero() {
			meal.ConsumedAt = time.Now()
		}
		if err := hr.store.AddMeal(meal); err != nil {
			hr.logger.Errorf("Could not save meal of %s: %v", user, err)
			http.Error(w, "Could not save meal", http.StatusInternalServerError)
			return
		}

		hr.writeJSON(w, http.StatusOK, meal)
	}
}

// authorized checks the shared token. Every request passes when AUTH_TOKEN is empty.
func (hr *HandlerRepository) authorized(w http.ResponseWriter, r *http.Request) bool {
	if hr.config.AuthToken != "" && r.Header.Get("Authorization") != hr.config.AuthToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}

	return true
}

// user returns the authorized user named by the X-User header.
func (hr *HandlerRepository) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !hr.authorized(w, r) {
		return "", false
	}

	user := strings.TrimSpace(r.Header.Get(userHeader))
	if user == "" {
		http.Error(w, "Missing "+userHeader+" header", http.StatusBadRequest)
		return "", false
	}

	return user, true
}

// parseMenuQuery reads the date and refresh query parameters.
// Forcing a new scrape requires authorization.
func (hr *HandlerRepository) parseMenuQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool, bool) {
	query := r.URL.Query()

	date := utils.Today()
	if s := query.Get("date"); s != "" {
		parsed, err := scraper.ParseDate(s)
		if err != nil {
			http.Error(w, "Invalid date", http.StatusBadRequest)
			return time.Time{}, false, false
		}
		date = parsed
	}

	refresh := false
	if s := query.Get("refresh"); s != "" {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			http.Error(w, "Invalid refresh flag", http.StatusBadRequest)
			return time.Time{}, false, false
		}
		refresh = parsed
	}
	if refresh && !hr.authorized(w, r) {
		return time.Time{}, false, false
	}

	return date, refresh, true
}

func (hr *HandlerRepository) writeMenuError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dining.ErrUnknownMeal):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dining.ErrUnknownCourt):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dining.ErrScrape):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		hr.logger.Errorf("Could not get menu: %v", err)
		http.Error(w, "Could not get menu", http.StatusInternalServerError)
	}
}

func (hr *HandlerRepository) writeJSON(w http.ResponseWriter, status int, data any) {
	res, err := json.Marshal(data)
	if err != nil {
		hr.logger.Errorf("Could not marshal response: %v", err)
		http.Error(w, "Could not marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(res); err != nil {
		hr.logger.Errorf("Could not write response: %v", err)
	}
}
