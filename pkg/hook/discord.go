package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/utils"
)

// Discord posts notifications to a Discord webhook.
// Without a webhook address every message is dropped.
type Discord struct {
	hookURL string
	client  *http.Client
}

func New(hookURL string) *Discord {
	return &Discord{
		hookURL: hookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendScrapeSummary reports a finished scrape including the courts which failed.
func (d *Discord) SendScrapeSummary(menu scraper.DailyMenu, took time.Duration) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🍽	**Menu scraped:** %s %s, %d items from %d courts in %s",
		menu.MealTime, menu.Date, menu.TotalItems(), len(menu.Courts), utils.FormatDuration(took)))

	for _, court := range menu.Courts {
		if court.Error != "" {
			sb.WriteString(fmt.Sprintf("\n⚠️	**%s:** %s", court.DiningCourt, court.Error))
			continue
		}
		sb.WriteString(fmt.Sprintf("\n• %s: %d items, %d stations", court.DiningCourt, court.TotalItems, len(court.Stations)))
	}

	return d.sendWebhook(sb.String())
}

// SendScrapeFailure reports a scrape which produced no menu at all.
func (d *Discord) SendScrapeFailure(meal string, err error) error {
	return d.sendWebhook(fmt.Sprintf("🚨	**Scrape failed:** %s: %v", meal, err))
}

func (d *Discord) sendWebhook(message string) error {
	if d == nil || d.hookURL == "" {
		return nil
	}

	body := struct {
		Content string `json:"content"`
	}{
		Content: message,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal data for Discord webhook")
	}
	data := bytes.NewBuffer(jsonData)

	resp, err := d.client.Post(d.hookURL, "application/json", data)
	if err != nil {
		return fmt.Errorf("could not send Discord webhook: %w", err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalid response code from Discord webhook: %d", resp.StatusCode)
	}

	return nil
}
