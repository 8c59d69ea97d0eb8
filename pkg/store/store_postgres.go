package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kotrzina/dining-menu/pkg/scraper"
	_ "github.com/lib/pq"
)

const (
	tablePrefix = "dining_"
)

type PostgresStore struct {
	db  *sql.DB
	ctx context.Context
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		ctx: ctx,
	}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	migrations := []string{
		// Key-value store for simple values
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %skv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, tablePrefix),

		// Scraped menus
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smenus (
			key TEXT PRIMARY KEY,
			meal_time TEXT NOT NULL,
			menu_date TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, tablePrefix),

		// Generated meal plans
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %splans (
			id SERIAL PRIMARY KEY,
			plan_id TEXT NOT NULL,
			meal_time TEXT NOT NULL,
			menu_date TEXT NOT NULL,
			provider TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, tablePrefix),

		// User goals, every save is a new version
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sgoals (
			id SERIAL PRIMARY KEY,
			goal_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %sgoals_user_idx ON %sgoals (user_id, id)`, tablePrefix, tablePrefix),

		// Meal history
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %smeals (
			id SERIAL PRIMARY KEY,
			meal_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			court TEXT NOT NULL,
			meal_time TEXT NOT NULL,
			calories INTEGER NOT NULL,
			protein_g DOUBLE PRECISION NOT NULL,
			carbs_g DOUBLE PRECISION NOT NULL,
			fat_g DOUBLE PRECISION NOT NULL,
			consumed_at TIMESTAMPTZ NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %smeals_user_idx ON %smeals (user_id, consumed_at)`, tablePrefix, tablePrefix),
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(s.ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) setValue(key, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %skv (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
	`, tablePrefix)
	_, err := s.db.ExecContext(s.ctx, query, key, value)
	return err
}

func (s *PostgresStore) getValue(key string) (string, error) {
	var value string
	query := fmt.Sprintf("SELECT value FROM %skv WHERE key = $1", tablePrefix)
	err := s.db.QueryRowContext(s.ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// Storage interface implementation

func (s *PostgresStore) SetMenu(key string, menu scraper.DailyMenu) error {
	data, err := encodeMenu(menu)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %smenus (key, meal_time, menu_date, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (key) DO UPDATE SET meal_time = $2, menu_date = $3, data = $4, updated_at = NOW()
	`, tablePrefix)
	_, err = s.db.ExecContext(s.ctx, query, key, menu.MealTime, menu.Date, string(data))
	return err
}

func (s *PostgresStore) GetMenu(key string) (scraper.DailyMenu, error) {
	var data string
	query := fmt.Sprintf("SELECT data FROM %smenus WHERE key = $1", tablePrefix)
	err := s.db.QueryRowContext(s.ctx, query, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return scraper.DailyMenu{}, ErrNotFound
	}
	if err != nil {
		return scraper.DailyMenu{}, err
	}

	return decodeMenu([]byte(data))
}

func (s *PostgresStore) SetLastScrape(at time.Time) error {
	return s.setValue("last_scrape", at.Format(time.RFC3339Nano))
}

func (s *PostgresStore) GetLastScrape() (time.Time, error) {
	val, err := s.getValue("last_scrape")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, val)
}

func (s *PostgresStore) AddPlan(plan Plan) error {
	query := fmt.Sprintf(`
		INSERT INTO %splans (plan_id, meal_time, menu_date, provider, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tablePrefix)
	if _, err := s.db.ExecContext(s.ctx, query, plan.ID, plan.MealTime, plan.Date, plan.Provider, plan.Text, plan.CreatedAt); err != nil {
		return err
	}

	// Keep only the newest plans
	deleteQuery := fmt.Sprintf(`
		DELETE FROM %splans
		WHERE id NOT IN (
			SELECT id FROM %splans ORDER BY id DESC LIMIT %d
		)
	`, tablePrefix, tablePrefix, plansLimit)
	_, err := s.db.ExecContext(s.ctx, deleteQuery)
	return err
}

func (s *PostgresStore) GetPlans() ([]Plan, error) {
	query := fmt.Sprintf("SELECT plan_id, meal_time, menu_date, provider, text, created_at FROM %splans ORDER BY id ASC", tablePrefix)
	rows, err := s.db.QueryContext(s.ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	plans := []Plan{}
	for rows.Next() {
		var plan Plan
		if err := rows.Scan(&plan.ID, &plan.MealTime, &plan.Date, &plan.Provider, &plan.Text, &plan.CreatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

func (s *PostgresStore) SaveGoals(entry GoalsEntry) error {
	data, err := json.Marshal(entry.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %sgoals (goal_id, user_id, data, created_at)
		VALUES ($1, $2, $3, $4)
	`, tablePrefix)
	if _, err := s.db.ExecContext(s.ctx, query, entry.ID, entry.UserID, string(data), entry.CreatedAt); err != nil {
		return err
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %sgoals
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM %sgoals WHERE user_id = $1 ORDER BY id DESC LIMIT %d
		)
	`, tablePrefix, tablePrefix, userLimit)
	_, err = s.db.ExecContext(s.ctx, deleteQuery, entry.UserID)
	return err
}

func (s *PostgresStore) GetGoals(userID string) ([]GoalsEntry, error) {
	query := fmt.Sprintf("SELECT goal_id, user_id, data, created_at FROM %sgoals WHERE user_id = $1 ORDER BY id DESC", tablePrefix)
	rows, err := s.db.QueryContext(s.ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []GoalsEntry{}
	for rows.Next() {
		var entry GoalsEntry
		var data string
		if err := rows.Scan(&entry.ID, &entry.UserID, &data, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &entry.Goals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *PostgresStore) AddMeal(meal Meal) error {
	query := fmt.Sprintf(`
		INSERT INTO %smeals (meal_id, user_id, name, court, meal_time, calories, protein_g, carbs_g, fat_g, consumed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, tablePrefix)
	_, err := s.db.ExecContext(s.ctx, query,
		meal.ID, meal.UserID, meal.Name, meal.Court, meal.MealTime,
		meal.Calories, meal.Protein, meal.Carbs, meal.Fat, meal.ConsumedAt,
	)
	if err != nil {
		return err
	}

	deleteQuery := fmt.Sprintf(`
		DELETE FROM %smeals
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM %smeals WHERE user_id = $1 ORDER BY consumed_at DESC, id DESC LIMIT %d
		)
	`, tablePrefix, tablePrefix, userLimit)
	_, err = s.db.ExecContext(s.ctx, deleteQuery, meal.UserID)
	return err
}

func (s *PostgresStore) GetMeals(userID string) ([]Meal, error) {
	query := fmt.Sprintf(`
		SELECT meal_id, user_id, name, court, meal_time, calories, protein_g, carbs_g, fat_g, consumed_at
		FROM %smeals WHERE user_id = $1 ORDER BY consumed_at DESC, id DESC LIMIT %d
	`, tablePrefix, mealsTake)
	rows, err := s.db.QueryContext(s.ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	meals := []Meal{}
	for rows.Next() {
		var meal Meal
		err := rows.Scan(
			&meal.ID, &meal.UserID, &meal.Name, &meal.Court, &meal.MealTime,
			&meal.Calories, &meal.Protein, &meal.Carbs, &meal.Fat, &meal.ConsumedAt,
		)
		if err != nil {
			return nil, err
		}
		meals = append(meals, meal)
	}

	return meals, rows.Err()
}
