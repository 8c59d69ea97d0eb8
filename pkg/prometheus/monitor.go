package prometheus

import "github.com/prometheus/client_golang/prometheus"

// Monitor represents a Prometheus monitor
// It contains Prometheus registry and all available metrics
type Monitor struct {
	Registry *prometheus.Registry

	PagesRendered  *prometheus.CounterVec
	RenderFailures *prometheus.CounterVec
	ItemsScraped   *prometheus.GaugeVec
	EmptyRecords   *prometheus.CounterVec
	LastScrape     *prometheus.GaugeVec
	ScrapeDuration *prometheus.HistogramVec

	PlansGenerated *prometheus.CounterVec
	InputTokens    *prometheus.CounterVec
	OutputTokens   *prometheus.CounterVec
}

// New creates a new Monitor
func New() *Monitor {
	reg := prometheus.NewRegistry()
	monitor := &Monitor{
		Registry: reg,

		PagesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_pages_rendered_total",
			Help: "Number of rendered pages by kind (listing, detail)",
		}, []string{"kind"}),

		RenderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_render_failures_total",
			Help: "Number of pages which could not be rendered by kind (listing, detail)",
		}, []string{"kind"}),

		ItemsScraped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dining_items_scraped",
			Help: "Number of food items in the last scrape of the court",
		}, []string{"court", "meal"}),

		EmptyRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_empty_nutrition_records_total",
			Help: "Number of detail pages without any recognised nutrition data",
		}, []string{"court"}),

		LastScrape: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dining_last_scrape",
			Help: "Unix time of the last finished scrape",
		}, []string{"meal"}),

		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dining_scrape_duration_seconds",
			Help:    "Duration of a full court scrape",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"court"}),

		PlansGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_plans_generated_total",
			Help: "Number of generated meal plans by provider",
		}, []string{"provider"}),

		InputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_ai_input_tokens_total",
			Help: "Language model input tokens by provider",
		}, []string{"provider"}),

		OutputTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dining_ai_output_tokens_total",
			Help: "Language model output tokens by provider",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		monitor.PagesRendered,
		monitor.RenderFailures,
		monitor.ItemsScraped,
		monitor.EmptyRecords,
		monitor.LastScrape,
		monitor.ScrapeDuration,
		monitor.PlansGenerated,
		monitor.InputTokens,
		monitor.OutputTokens,
	)

	return monitor
}
