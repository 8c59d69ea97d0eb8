package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kotrzina/dining-menu/pkg/ai"
	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/dining"
	"github.com/kotrzina/dining-menu/pkg/hook"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/store"
	"github.com/kotrzina/dining-menu/pkg/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	scrapeOnly := flag.Bool("scrape", false, "scrape all courts once, write the menu file and exit")
	meal := flag.String("meal", "lunch", "meal period: breakfast, lunch, late lunch or dinner")
	date := flag.String("date", "", "menu date as YYYY/MM/DD, today when empty")
	flag.Parse()

	// for development purposes
	// we don't care about errors here
	_ = godotenv.Load(".env")
	conf := config.NewConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := createLogger(conf.Debug)
	mon := prometheus.New()

	source, err := scraper.NewSource(ctx, conf, mon, logger)
	if err != nil {
		logger.Fatalf("Could not create menu source: %v", err)
	}

	if *scrapeOnly {
		if err := runScrape(ctx, conf, source, logger, *meal, *date); err != nil {
			logger.Fatalf("Scrape failed: %v", err)
		}
		return
	}

	storage := createStorage(ctx, conf, logger)
	diningService := dining.New(ctx, conf, source, storage, hook.New(conf.DiscordHookURL), mon, logger)
	planner := ai.NewAi(conf, mon, logger)

	StartServer(NewRouter(&HandlerRepository{
		dining:  diningService,
		ai:      planner,
		store:   storage,
		config:  conf,
		monitor: mon,
		logger:  logger,
	}), conf.Port, cancel)
}

// runScrape scrapes every court once and writes the menu file into the output directory.
// Interrupting the scrape keeps the items collected so far.
func runScrape(ctx context.Context, conf *config.Config, source dining.MenuSource, logger *logrus.Logger, meal, date string) error {
	meal, err := dining.NormalizeMeal(meal)
	if err != nil {
		return err
	}

	day := utils.Today()
	if date != "" {
		day, err = scraper.ParseDate(date)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	menu := source.ScrapeAll(ctx, meal, day)

	path, err := scraper.WriteFile(conf.OutputDir, menu)
	if err != nil {
		return err
	}

	fmt.Print(scraper.Summary(menu))
	logger.WithFields(logrus.Fields{
		"file":  path,
		"items": menu.TotalItems(),
	}).Infof("Menu written in %s", utils.FormatDuration(time.Since(start)))

	return nil
}

func createStorage(ctx context.Context, conf *config.Config, logger *logrus.Logger) store.Storage {
	switch conf.Store {
	case "redis":
		return store.NewRedisStore(conf)
	case "postgres":
		storage, err := store.NewPostgresStore(ctx, conf.DBString)
		if err != nil {
			logger.Fatalf("Could not connect to the database: %v", err)
		}
		return storage
	default:
		return store.NewFakeStore()
	}
}

func createLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}
