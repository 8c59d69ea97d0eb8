package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Scraper collects menus of dining courts. Listing pages are read first and the
// detail page of every listed item is then normalised by a bounded pool of workers.
type Scraper struct {
	conf     *config.Config
	sessions SessionFactory
	limiter  *rate.Limiter
	monitor  *prometheus.Monitor
	logger   *logrus.Logger
}

type detailJob struct {
	index   int
	listing menu.FoodListing
}

func New(conf *config.Config, sessions SessionFactory, monitor *prometheus.Monitor, logger *logrus.Logger) *Scraper {
	limit := rate.Inf
	if conf.ScrapeRPS > 0 {
		limit = rate.Limit(conf.ScrapeRPS)
	}

	return &Scraper{
		conf:     conf,
		sessions: sessions,
		limiter:  rate.NewLimiter(limit, 1),
		monitor:  monitor,
		logger:   logger,
	}
}

// Sessions picks the session factory configured by RENDERER.
func Sessions(ctx context.Context, conf *config.Config) (SessionFactory, error) {
	timeout := time.Duration(conf.ScrapeTimeout) * time.Second
	switch conf.Renderer {
	case "http", "":
		return HTTPSessions(timeout, conf.ScrapeRetries), nil
	case "chrome":
		return ChromeSessions(ctx, timeout), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", conf.Renderer)
	}
}

// Source produces the menus of all courts for a meal period.
type Source interface {
	ScrapeAll(ctx context.Context, meal string, date time.Time) DailyMenu
}

// NewSource picks the menu source configured by SOURCE: rendered pages or the menus API.
func NewSource(ctx context.Context, conf *config.Config, monitor *prometheus.Monitor, logger *logrus.Logger) (Source, error) {
	switch conf.Source {
	case "html", "":
		sessions, err := Sessions(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(conf, sessions, monitor, logger), nil
	case "api":
		return NewAPISource(conf, monitor, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", conf.Source)
	}
}

// ScrapeAll scrapes every court serving the meal period concurrently.
// Courts keep configuration order in the result.
func (s *Scraper) ScrapeAll(ctx context.Context, meal string, date time.Time) DailyMenu {
	courts := s.conf.CourtsFor(meal)
	results := make([]CourtMenu, len(courts))

	s.logger.Infof("Scraping %d courts for %s on %s", len(courts), meal, date.Format(DateLayout))

	var wg sync.WaitGroup
	for i, court := range courts {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = s.ScrapeCourt(ctx, name, meal, date)
		}(i, court.Name)
	}
	wg.Wait()

	s.monitor.LastScrape.WithLabelValues(meal).Set(float64(time.Now().Unix()))

	return DailyMenu{
		MealTime: meal,
		Date:     date.Format(DateLayout),
		Courts:   results,
	}
}

// ScrapeCourt scrapes one court. Failures of the listing page are reported in
// CourtMenu.Error. Items whose detail page failed keep an empty nutrition record with
// NutritionError set. Items not processed before ctx is cancelled are left out.
func (s *Scraper) ScrapeCourt(ctx context.Context, court, meal string, date time.Time) CourtMenu {
	start := time.Now()
	logger := s.logger.WithFields(logrus.Fields{"court": court, "meal": meal})
	result := CourtMenu{
		DiningCourt: court,
		MealTime:    meal,
		Date:        date.Format(DateLayout),
		Stations:    Stations{},
	}

	session, err := s.sessions()
	if err != nil {
		logger.Errorf("Could not open rendering session: %v", err)
		result.Error = fmt.Sprintf("could not open rendering session: %v", err)
		return result
	}
	defer s.closeSession(session, logger)

	stations, err := s.listings(ctx, session, MenuURL(s.conf.DiningBaseURL, court, meal, date))
	if err != nil {
		logger.Errorf("Could not read listing page: %v", err)
		result.Error = err.Error()
		return result
	}
	logger.Debugf("Found %d stations", len(stations))

	// stations sharing a name are merged, the first occurrence keeps its position
	positions := map[string]int{}
	jobs := []detailJob{}
	jobStation := []int{}
	for _, station := range stations {
		pos, ok := positions[station.Name]
		if !ok {
			pos = len(result.Stations)
			positions[station.Name] = pos
			result.Stations = append(result.Stations, StationMenu{Name: station.Name, Items: []MenuItem{}})
		}
		for _, listing := range station.Items {
			jobs = append(jobs, detailJob{index: len(jobs), listing: listing})
			jobStation = append(jobStation, pos)
		}
	}

	items := s.details(ctx, session, court, meal, jobs, logger)
	for i, item := range items {
		if item == nil {
			continue // cancelled before it was processed
		}
		pos := jobStation[i]
		result.Stations[pos].Items = append(result.Stations[pos].Items, *item)
		result.TotalItems++
	}

	s.monitor.ItemsScraped.WithLabelValues(court, meal).Set(float64(result.TotalItems))
	s.monitor.ScrapeDuration.WithLabelValues(court).Observe(time.Since(start).Seconds())
	logger.Infof("Scraped %d items across %d stations", result.TotalItems, len(result.Stations))

	return result
}

func (s *Scraper) listings(ctx context.Context, session Renderer, address string) ([]menu.Station, error) {
	markup, err := s.render(ctx, session, address, "listing")
	if err != nil {
		return nil, fmt.Errorf("could not render listing page: %w", err)
	}

	doc, err := menu.ParseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("could not parse listing page: %w", err)
	}

	return menu.ExtractListings(doc, s.conf.DiningBaseURL), nil
}

// details normalises the detail pages of all jobs. The listing session is reused by
// the first worker, other workers open their own sessions.
// The returned slice is indexed like jobs, nil marks an item never processed.
func (s *Scraper) details(ctx context.Context, listing Renderer, court, meal string, jobs []detailJob, logger *logrus.Entry) []*MenuItem {
	results := make([]*MenuItem, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := s.conf.ScrapeWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan detailJob, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		session := listing
		if w > 0 {
			var err error
			session, err = s.sessions()
			if err != nil {
				logger.Warnf("Could not open session for worker %d: %v", w, err)
				continue
			}
		}

		wg.Add(1)
		go func(w int, session Renderer) {
			defer wg.Done()
			if w > 0 {
				defer s.closeSession(session, logger)
			}

			for job := range queue {
				if ctx.Err() != nil {
					continue // drain
				}
				if item := s.detail(ctx, session, court, meal, job.listing, logger); item != nil {
					results[job.index] = item
				}
			}
		}(w, session)
	}
	wg.Wait()

	return results
}

func (s *Scraper) detail(ctx context.Context, session Renderer, court, meal string, listing menu.FoodListing, logger *logrus.Entry) *MenuItem {
	item := &MenuItem{
		FoodListing: listing,
		Court:       court,
		MealTime:    meal,
	}

	markup, err := s.render(ctx, session, listing.DetailReference, "detail")
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnf("Could not render detail of %q: %v", listing.Name, err)
		item.Nutrition = menu.NormalizeNutrition(nil)
		item.NutritionError = err.Error()
		return item
	}

	doc, err := menu.ParseDocument(markup)
	if err != nil {
		item.Nutrition = menu.NormalizeNutrition(nil)
		item.NutritionError = err.Error()
		return item
	}

	item.Nutrition = menu.NormalizeNutrition(doc)
	if item.Nutrition.IsEmpty() {
		s.monitor.EmptyRecords.WithLabelValues(court).Inc()
	}
	logger.Debugf("%s: %s", listing.Name, describe(item.Nutrition))

	return item
}

func (s *Scraper) render(ctx context.Context, session Renderer, address, kind string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	markup, err := session.Render(ctx, address)
	if err != nil {
		s.monitor.RenderFailures.WithLabelValues(kind).Inc()
		return "", err
	}
	s.monitor.PagesRendered.WithLabelValues(kind).Inc()

	return markup, nil
}

func (s *Scraper) closeSession(session Renderer, logger *logrus.Entry) {
	if err := session.Close(); err != nil {
		logger.Warnf("Could not close rendering session: %v", err)
	}
}

func describe(record menu.NutritionRecord) string {
	calories := "N/A"
	if record.TotalCalories != nil {
		calories = fmt.Sprintf("%d", *record.TotalCalories)
	}
	protein := "N/A"
	if v, ok := record.Get(menu.FieldProtein); ok {
		protein = fmt.Sprintf("%g", v)
	}
	sodium := "N/A"
	if v, ok := record.Get(menu.FieldSodium); ok {
		sodium = fmt.Sprintf("%g", v)
	}

	return fmt.Sprintf("%s cal, %sg protein, %smg sodium", calories, protein, sodium)
}
