package dining

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/hook"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/store"
	"github.com/kotrzina/dining-menu/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownMeal  = errors.New("unknown meal period")
	ErrUnknownCourt = errors.New("unknown dining court")
	ErrScrape       = errors.New("no dining court could be scraped")
)

// menuCacheLimit is the number of menus kept in memory, older ones are read from the store again.
const menuCacheLimit = 64

// MealTimes are the meal periods served by the dining courts.
var MealTimes = []string{"breakfast", "lunch", "late lunch", "dinner"}

// MenuSource produces the menus of all courts for a meal period.
type MenuSource interface {
	ScrapeAll(ctx context.Context, meal string, date time.Time) scraper.DailyMenu
}

// Dining keeps scraped menus in memory backed by the store.
// Menus missing in both are scraped on demand; concurrent requests for the same
// menu share one scrape.
type Dining struct {
	mux        sync.RWMutex
	menus      map[string]scraper.DailyMenu
	order      []string // menu keys from the oldest cached
	lastScrape time.Time

	flight singleflight.Group

	source  MenuSource
	store   store.Storage
	config  *config.Config
	discord *hook.Discord
	monitor *prometheus.Monitor
	logger  *logrus.Logger
	ctx     context.Context
}

func New(
	ctx context.Context,
	conf *config.Config,
	source MenuSource,
	storage store.Storage,
	discord *hook.Discord,
	monitor *prometheus.Monitor,
	logger *logrus.Logger,
) *Dining {
	d := &Dining{
		menus:      map[string]scraper.DailyMenu{},
		lastScrape: time.Unix(0, 0),

		source:  source,
		store:   storage,
		config:  conf,
		discord: discord,
		monitor: monitor,
		logger:  logger,
		ctx:     ctx,
	}

	d.loadDataFromStore()

	if conf.RefreshInterval > 0 {
		// periodically refresh today's menus
		go func(d *Dining) {
			tick := time.NewTicker(time.Duration(d.config.RefreshInterval) * time.Minute)
			defer tick.Stop()
			for {
				select {
				case <-d.ctx.Done():
					d.logger.Debug("Menu refresh stopped")
					return
				case <-tick.C:
					d.Refresh()
				}
			}
		}(d)
	}

	return d
}

func (d *Dining) loadDataFromStore() {
	today := utils.Today()
	for _, meal := range d.config.MealTimes {
		key := store.MenuKey(meal, today)
		menu, err := d.store.GetMenu(key)
		if err == nil {
			d.cacheMenu(key, menu)
		}
	}

	lastScrape, err := d.store.GetLastScrape()
	if err == nil {
		d.lastScrape = lastScrape
	}

	d.logger.Infof("Loaded %d menus from the store", len(d.menus))
}

// NormalizeMeal returns the canonical lower-case meal period name.
func NormalizeMeal(meal string) (string, error) {
	meal = strings.Join(strings.Fields(strings.ToLower(meal)), " ")
	if meal == "" {
		return "lunch", nil
	}
	for _, m := range MealTimes {
		if m == meal {
			return m, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownMeal, meal)
}

// GetMenu returns the menu of the meal period. Cached menus are used unless refresh
// is set.
func (d *Dining) GetMenu(ctx context.Context, meal string, date time.Time, refresh bool) (scraper.DailyMenu, error) {
	meal, err := NormalizeMeal(meal)
	if err != nil {
		return scraper.DailyMenu{}, err
	}
	key := store.MenuKey(meal, date)

	if !refresh {
		d.mux.RLock()
		menu, ok := d.menus[key]
		d.mux.RUnlock()
		if ok {
			return menu, nil
		}

		menu, err := d.store.GetMenu(key)
		if err == nil {
			d.mux.Lock()
			d.cacheMenu(key, menu)
			d.mux.Unlock()
			return menu, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			d.logger.Warnf("Could not read menu %s from the store: %v", key, err)
		}
	}

	// the scrape is shared by all waiting callers and lives as long as the service
	ch := d.flight.DoChan(key, func() (interface{}, error) {
		return d.scrape(d.ctx, meal, date)
	})

	select {
	case <-ctx.Done():
		return scraper.DailyMenu{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return scraper.DailyMenu{}, res.Err
		}
		return res.Val.(scraper.DailyMenu), nil
	}
}

// GetCourtMenu returns the menu of a single court.
func (d *Dining) GetCourtMenu(ctx context.Context, court, meal string, date time.Time, refresh bool) (scraper.CourtMenu, error) {
	c, ok := d.config.FindCourt(court)
	if !ok {
		return scraper.CourtMenu{}, fmt.Errorf("%w: %q", ErrUnknownCourt, court)
	}

	menu, err := d.GetMenu(ctx, meal, date, refresh)
	if err != nil {
		return scraper.CourtMenu{}, err
	}

	courtMenu, ok := menu.Court(c.Name)
	if !ok {
		// the court does not serve the meal period
		courtMenu = scraper.CourtMenu{
			DiningCourt: c.Name,
			MealTime:    menu.MealTime,
			Date:        menu.Date,
			Stations:    scraper.Stations{},
		}
	}

	return courtMenu, nil
}

func (d *Dining) scrape(ctx context.Context, meal string, date time.Time) (scraper.DailyMenu, error) {
	start := time.Now()
	menu := d.source.ScrapeAll(ctx, meal, date)
	took := time.Since(start)

	if ctx.Err() != nil {
		return scraper.DailyMenu{}, fmt.Errorf("scrape of %s cancelled: %w", meal, ctx.Err())
	}

	failed := 0
	for _, court := range menu.Courts {
		if court.Error != "" {
			failed++
		}
	}
	if len(menu.Courts) > 0 && failed == len(menu.Courts) {
		if err := d.discord.SendScrapeFailure(meal, ErrScrape); err != nil {
			d.logger.Warnf("Could not send Discord notification: %v", err)
		}
		return scraper.DailyMenu{}, fmt.Errorf("%w: %s %s", ErrScrape, meal, menu.Date)
	}

	key := store.MenuKey(meal, date)
	now := time.Now()

	d.mux.Lock()
	d.cacheMenu(key, menu)
	d.lastScrape = now
	d.mux.Unlock()

	if err := d.store.SetMenu(key, menu); err != nil {
		d.logger.Errorf("Could not store menu %s: %v", key, err)
	}
	if err := d.store.SetLastScrape(now); err != nil {
		d.logger.Errorf("Could not store last scrape time: %v", err)
	}

	d.logger.WithFields(logrus.Fields{
		"meal":  meal,
		"date":  menu.Date,
		"items": menu.TotalItems(),
	}).Infof("Menu scraped in %s", utils.FormatDuration(took))

	if err := d.discord.SendScrapeSummary(menu, took); err != nil {
		d.logger.Warnf("Could not send Discord notification: %v", err)
	}

	return menu, nil
}

// cacheMenu stores the menu and evicts the oldest cached menus over menuCacheLimit.
// The caller holds the lock.
func (d *Dining) cacheMenu(key string, menu scraper.DailyMenu) {
	if _, ok := d.menus[key]; ok {
		for i, k := range d.order {
			if k == key {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.menus[key] = menu
	d.order = append(d.order, key)

	for len(d.order) > menuCacheLimit {
		delete(d.menus, d.order[0])
		d.order = d.order[1:]
	}
}

// Refresh scrapes today's menus of all configured meal periods.
func (d *Dining) Refresh() {
	today := utils.Today()
	for _, meal := range d.config.MealTimes {
		if _, err := d.GetMenu(d.ctx, meal, today, true); err != nil {
			d.logger.Errorf("Could not refresh %s menu: %v", meal, err)
		}
		if d.ctx.Err() != nil {
			return
		}
	}
}

// LastScrape returns the time of the last successful scrape.
func (d *Dining) LastScrape() time.Time {
	d.mux.RLock()
	defer d.mux.RUnlock()

	return d.lastScrape
}

// Courts returns the configured courts.
func (d *Dining) Courts() []config.Court {
	return d.config.Courts
}
