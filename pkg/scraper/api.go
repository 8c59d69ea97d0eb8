package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/menu"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// APIDateLayout is the date format of the menus API.
const APIDateLayout = "2006-01-02"

const menuQuery = `query getLocationMenu($name: String!, $date: Date!) {
  diningCourtByName(name: $name) {
    dailyMenu(date: $date) {
      meals {
        name
        status
        stations {
          name
          items {
            item {
              itemId
              name
              isNutritionReady
            }
          }
        }
      }
    }
  }
}`

const nutritionQuery = `query getItemNutrition($itemId: String!) {
  item(id: $itemId) {
    name
    nutrition {
      label
      value
      unit
    }
  }
}`

// labels used by the API which the nutrition table spells out in full
var apiLabelAliases = map[string]string{
	"carbohydrate": "total carbohydrate",
	"fat":          "total fat",
}

var errEmptyNutrition = errors.New("no nutrition data")

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type menuResponse struct {
	Data struct {
		DiningCourtByName *struct {
			DailyMenu *struct {
				Meals []apiMeal `json:"meals"`
			} `json:"dailyMenu"`
		} `json:"diningCourtByName"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type apiMeal struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Stations []struct {
		Name  string `json:"name"`
		Items []struct {
			Item *apiItem `json:"item"`
		} `json:"items"`
	} `json:"stations"`
}

type apiItem struct {
	ItemID           string `json:"itemId"`
	Name             string `json:"name"`
	IsNutritionReady bool   `json:"isNutritionReady"`
}

type nutritionResponse struct {
	Data struct {
		Item *struct {
			Nutrition []struct {
				Label string `json:"label"`
				Value any    `json:"value"`
				Unit  string `json:"unit"`
			} `json:"nutrition"`
		} `json:"item"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type itemResponseV2 struct {
	Nutrition []struct {
		Name       string   `json:"Name"`
		Value      *float64 `json:"Value"`
		LabelValue string   `json:"LabelValue"`
	} `json:"Nutrition"`
}

// APISource reads menus from the dining GraphQL API instead of rendering pages.
// Nutrition comes from the GraphQL item query with the v2 REST endpoint as fallback.
type APISource struct {
	conf    *config.Config
	client  *http.Client
	limiter *rate.Limiter
	monitor *prometheus.Monitor
	logger  *logrus.Logger
}

func NewAPISource(conf *config.Config, monitor *prometheus.Monitor, logger *logrus.Logger) *APISource {
	limit := rate.Inf
	if conf.ScrapeRPS > 0 {
		limit = rate.Limit(conf.ScrapeRPS)
	}

	return &APISource{
		conf: conf,
		client: &http.Client{
			Timeout: time.Duration(conf.ScrapeTimeout) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		monitor: monitor,
		logger:  logger,
	}
}

// ScrapeAll queries every court serving the meal period concurrently.
// Courts keep configuration order in the result.
func (a *APISource) ScrapeAll(ctx context.Context, meal string, date time.Time) DailyMenu {
	courts := a.conf.CourtsFor(meal)
	results := make([]CourtMenu, len(courts))

	a.logger.Infof("Querying %d courts for %s on %s", len(courts), meal, date.Format(APIDateLayout))

	var g errgroup.Group
	for i, court := range courts {
		i, court := i, court
		g.Go(func() error {
			results[i] = a.ScrapeCourt(ctx, court.Name, meal, date)
			return nil
		})
	}
	_ = g.Wait()

	a.monitor.LastScrape.WithLabelValues(meal).Set(float64(time.Now().Unix()))

	return DailyMenu{
		MealTime: meal,
		Date:     date.Format(DateLayout),
		Courts:   results,
	}
}

// ScrapeCourt reads the menu of one court. A failed menu query is reported in
// CourtMenu.Error, a court not serving the meal gives no stations.
// Only items with nutrition ready are listed.
func (a *APISource) ScrapeCourt(ctx context.Context, court, meal string, date time.Time) CourtMenu {
	start := time.Now()
	logger := a.logger.WithFields(logrus.Fields{"court": court, "meal": meal})
	result := CourtMenu{
		DiningCourt: court,
		MealTime:    meal,
		Date:        date.Format(DateLayout),
		Stations:    Stations{},
	}

	meals, err := a.menu(ctx, court, date)
	if err != nil {
		logger.Errorf("Could not fetch menu: %v", err)
		result.Error = fmt.Sprintf("could not fetch menu data: %v", err)
		return result
	}

	var target *apiMeal
	for i := range meals {
		if strings.EqualFold(strings.TrimSpace(meals[i].Name), meal) {
			target = &meals[i]
			break
		}
	}
	if target == nil {
		logger.Infof("Meal is not served")
		return result
	}

	// stations sharing a name are merged, the first occurrence keeps its position
	positions := map[string]int{}
	jobs := []detailJob{}
	jobStation := []int{}
	ids := []string{}
	for _, station := range target.Stations {
		pos, ok := positions[station.Name]
		if !ok {
			pos = len(result.Stations)
			positions[station.Name] = pos
			result.Stations = append(result.Stations, StationMenu{Name: station.Name, Items: []MenuItem{}})
		}
		for _, entry := range station.Items {
			if entry.Item == nil || !entry.Item.IsNutritionReady {
				continue
			}
			jobs = append(jobs, detailJob{index: len(jobs), listing: menu.FoodListing{
				Name:            entry.Item.Name,
				Station:         station.Name,
				DetailReference: strings.TrimRight(a.conf.DiningBaseURL, "/") + "/menus/item/" + url.PathEscape(entry.Item.ItemID),
			}})
			jobStation = append(jobStation, pos)
			ids = append(ids, entry.Item.ItemID)
		}
	}

	workers := a.conf.ScrapeWorkers
	if workers < 1 {
		workers = 1
	}

	items := make([]*MenuItem, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil // left out
			}
			items[job.index] = a.item(ctx, court, meal, ids[job.index], job.listing, logger)
			return nil
		})
	}
	_ = g.Wait()

	for i, item := range items {
		if item == nil {
			continue
		}
		pos := jobStation[i]
		result.Stations[pos].Items = append(result.Stations[pos].Items, *item)
		result.TotalItems++
	}

	a.monitor.ItemsScraped.WithLabelValues(court, meal).Set(float64(result.TotalItems))
	a.monitor.ScrapeDuration.WithLabelValues(court).Observe(time.Since(start).Seconds())
	logger.Infof("Fetched %d items across %d stations", result.TotalItems, len(result.Stations))

	return result
}

func (a *APISource) menu(ctx context.Context, court string, date time.Time) ([]apiMeal, error) {
	var resp menuResponse
	err := a.graphql(ctx, "listing", graphqlRequest{
		OperationName: "getLocationMenu",
		Variables: map[string]any{
			"name": court,
			"date": date.Format(APIDateLayout),
		},
		Query: menuQuery,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("query failed: %s", resp.Errors[0].Message)
	}
	if resp.Data.DiningCourtByName == nil || resp.Data.DiningCourtByName.DailyMenu == nil {
		return nil, errors.New("no daily menu")
	}

	return resp.Data.DiningCourtByName.DailyMenu.Meals, nil
}

// item fetches nutrition of one item. It returns nil when ctx was cancelled meanwhile.
func (a *APISource) item(ctx context.Context, court, meal, id string, listing menu.FoodListing, logger *logrus.Entry) *MenuItem {
	item := &MenuItem{
		FoodListing: listing,
		Court:       court,
		MealTime:    meal,
	}

	record, err := a.nutrition(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnf("GraphQL nutrition of %q failed, trying v2: %v", listing.Name, err)

		var errV2 error
		record, errV2 = a.nutritionV2(ctx, id)
		if errV2 != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnf("Could not fetch nutrition of %q: %v", listing.Name, errV2)
			item.Nutrition = menu.NormalizeNutrition(nil)
			item.NutritionError = fmt.Sprintf("v2 fallback failed: %v", errV2)
			return item
		}
	}

	item.Nutrition = record
	if record.IsEmpty() {
		a.monitor.EmptyRecords.WithLabelValues(court).Inc()
	}
	logger.Debugf("%s: %s", listing.Name, describe(record))

	return item
}

func (a *APISource) nutrition(ctx context.Context, id string) (menu.NutritionRecord, error) {
	var resp nutritionResponse
	err := a.graphql(ctx, "detail", graphqlRequest{
		OperationName: "getItemNutrition",
		Variables:     map[string]any{"itemId": id},
		Query:         nutritionQuery,
	}, &resp)
	if err != nil {
		return menu.NutritionRecord{}, err
	}
	if len(resp.Errors) > 0 {
		return menu.NutritionRecord{}, fmt.Errorf("query failed: %s", resp.Errors[0].Message)
	}
	if resp.Data.Item == nil {
		return menu.NutritionRecord{}, errors.New("unknown item")
	}

	record := menu.NormalizeNutrition(nil)
	for _, fact := range resp.Data.Item.Nutrition {
		switch v := fact.Value.(type) {
		case float64:
			applyFact(&record, fact.Label, &v, "")
		case string:
			applyFact(&record, fact.Label, nil, v)
		}
	}

	return record, nil
}

func (a *APISource) nutritionV2(ctx context.Context, id string) (menu.NutritionRecord, error) {
	address := strings.TrimRight(a.apiURL(), "/") + "/v2/items/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, http.NoBody)
	if err != nil {
		return menu.NutritionRecord{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	var resp itemResponseV2
	if err := a.do(ctx, req, "detail", &resp); err != nil {
		return menu.NutritionRecord{}, err
	}

	record := menu.NormalizeNutrition(nil)
	for _, fact := range resp.Nutrition {
		applyFact(&record, fact.Name, fact.Value, fact.LabelValue)
	}
	if record.IsEmpty() {
		return record, errEmptyNutrition
	}

	return record, nil
}

// applyFact stores one labelled nutrient. A numeric value wins over the text,
// serving size keeps the text verbatim.
func applyFact(record *menu.NutritionRecord, label string, value *float64, text string) {
	label = strings.ToLower(strings.TrimSpace(label))
	if alias, ok := apiLabelAliases[label]; ok {
		label = alias
	}

	if label == "serving size" {
		if text = strings.TrimSpace(text); text != "" {
			record.ServingSize = &text
		}
		return
	}

	if value == nil {
		parsed, ok := menu.ParseValue(text)
		if !ok {
			return
		}
		value = &parsed
	}
	if *value < 0 {
		return
	}

	if label == "calories" {
		calories := int(math.Round(*value))
		record.TotalCalories = &calories
		return
	}

	if field, ok := menu.MatchField(label); ok {
		record.Nutrients[field] = *value
	}
}

func (a *APISource) graphql(ctx context.Context, kind string, query graphqlRequest, out any) error {
	body, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("could not encode query: %w", err)
	}

	address := strings.TrimRight(a.apiURL(), "/") + "/v3/GraphQL"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	origin := strings.TrimRight(a.conf.DiningBaseURL, "/")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("User-Agent", userAgent)

	return a.do(ctx, req, kind, out)
}

func (a *APISource) do(ctx context.Context, req *http.Request, kind string, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.monitor.RenderFailures.WithLabelValues(kind).Inc()
		return err
	}
	defer resp.Body.Close() //nolint: errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		a.monitor.RenderFailures.WithLabelValues(kind).Inc()
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		a.monitor.RenderFailures.WithLabelValues(kind).Inc()
		return fmt.Errorf("could not decode response: %w", err)
	}
	a.monitor.PagesRendered.WithLabelValues(kind).Inc()

	return nil
}

func (a *APISource) apiURL() string {
	if a.conf.APIURL == "" {
		return "https://api.hfs.purdue.edu/menus"
	}
	return a.conf.APIURL
}
