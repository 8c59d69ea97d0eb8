package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/redis/go-redis/v9"
)

const (
	LastScrapeKey = "last_scrape"
	PlansKey      = "plans"
	GoalsPrefix   = "goals:" // list per user, newest first
	MealsPrefix   = "meals:" // sorted set per user scored by consumption time
)

type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(config *config.Config) *RedisStore {
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{
			Addr: config.RedisAddr,
			DB:   config.RedisDB,
		}),
	}
}

func (s *RedisStore) SetMenu(key string, menu scraper.DailyMenu) error {
	data, err := encodeMenu(menu)
	if err != nil {
		return err
	}

	return s.Client.Set(context.Background(), key, data, 0).Err()
}

func (s *RedisStore) GetMenu(key string) (scraper.DailyMenu, error) {
	res, err := s.Client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return scraper.DailyMenu{}, ErrNotFound
	}
	if err != nil {
		return scraper.DailyMenu{}, err
	}

	return decodeMenu(res)
}

func (s *RedisStore) SetLastScrape(at time.Time) error {
	return s.Client.Set(context.Background(), LastScrapeKey, at, 0).Err()
}

func (s *RedisStore) GetLastScrape() (time.Time, error) {
	at, err := s.Client.Get(context.Background(), LastScrapeKey).Time()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrNotFound
	}
	return at, err
}

func (s *RedisStore) AddPlan(plan Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	ctx := context.Background()
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, PlansKey, data)
		pipe.LTrim(ctx, PlansKey, -plansLimit, -1)
		return nil
	})
	return err
}

func (s *RedisStore) GetPlans() ([]Plan, error) {
	res, err := s.Client.LRange(context.Background(), PlansKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	plans := make([]Plan, 0, len(res))
	for _, item := range res {
		var plan Plan
		if err := json.Unmarshal([]byte(item), &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *RedisStore) SaveGoals(entry GoalsEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	ctx := context.Background()
	key := GoalsPrefix + entry.UserID
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, userLimit-1)
		return nil
	})
	return err
}

func (s *RedisStore) GetGoals(userID string) ([]GoalsEntry, error) {
	res, err := s.Client.LRange(context.Background(), GoalsPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]GoalsEntry, 0, len(res))
	for _, item := range res {
		var entry GoalsEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) AddMeal(meal Meal) error {
	data, err := json.Marshal(meal)
	if err != nil {
		return fmt.Errorf("failed to marshal meal: %w", err)
	}

	ctx := context.Background()
	key := MealsPrefix + meal.UserID
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(meal.ConsumedAt.UnixMilli()), Member: data})
		pipe.ZRemRangeByRank(ctx, key, 0, -userLimit-1)
		return nil
	})
	return err
}

func (s *RedisStore) GetMeals(userID string) ([]Meal, error) {
	res, err := s.Client.ZRevRange(context.Background(), MealsPrefix+userID, 0, mealsTake-1).Result()
	if err != nil {
		return nil, err
	}

	meals := make([]Meal, 0, len(res))
	for _, item := range res {
		var meal Meal
		if err := json.Unmarshal([]byte(item), &meal); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meal: %w", err)
		}
		meals = append(meals, meal)
	}
	return meals, nil
}
