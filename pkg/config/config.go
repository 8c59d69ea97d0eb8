package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Debug bool
	Port  int

	Store     string // memory, redis or postgres
	RedisAddr string
	RedisDB   int
	DBString  string

	AuthToken string // required on POST endpoints when set

	DiningBaseURL string
	Courts        []Court
	MealTimes     []string // meal periods refreshed in the background

	Source          string // html or api
	APIURL          string
	Renderer        string // http or chrome
	ScrapeWorkers   int
	ScrapeRPS       float64
	ScrapeRetries   int
	ScrapeTimeout   int // seconds
	RefreshInterval int // minutes, 0 disables background refresh

	OutputDir string

	AiProvider      string
	AnthropicAPIKey string
	OpenAiAPIKey    string

	DiscordHookURL string
}

func NewConfig() *Config {
	conf := &Config{
		Debug: getBoolEnvDefault("DEBUG", false),
		Port:  getIntEnvDefault("PORT", 8080),

		Store:     getStringEnvDefault("STORE", "memory"),
		RedisAddr: getStringEnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getIntEnvDefault("REDIS_DB", 0),
		DBString:  getStringEnvDefault("DB_STRING", "host=localhost port=5432 user=postgres password=admin dbname=dining sslmode=disable"),

		AuthToken: getStringEnvDefault("AUTH_TOKEN", ""),

		DiningBaseURL: getStringEnvDefault("DINING_BASE_URL", "https://dining.purdue.edu"),
		Courts:        parseCourts(getStringEnvDefault("DINING_COURTS", "Earhart,Ford,Hillenbrand,Wiley,Windsor")),
		MealTimes:     parseList(getStringEnvDefault("MEAL_TIMES", "breakfast,lunch,dinner")),

		Source:          getStringEnvDefault("SOURCE", "html"),
		APIURL:          getStringEnvDefault("API_URL", "https://api.hfs.purdue.edu/menus"),
		Renderer:        getStringEnvDefault("RENDERER", "http"),
		ScrapeWorkers:   getIntEnvDefault("SCRAPE_WORKERS", 5),
		ScrapeRPS:       getFloatEnvDefault("SCRAPE_RPS", 2),
		ScrapeRetries:   getIntEnvDefault("SCRAPE_RETRIES", 3),
		ScrapeTimeout:   getIntEnvDefault("SCRAPE_TIMEOUT_SEC", 60),
		RefreshInterval: getIntEnvDefault("REFRESH_INTERVAL_MIN", 0),

		OutputDir: getStringEnvDefault("OUTPUT_DIR", "."),

		AiProvider:      getStringEnvDefault("AI_PROVIDER", "anthropic"),
		AnthropicAPIKey: getStringEnvDefault("ANTHROPIC_API_KEY", ""),
		OpenAiAPIKey:    getStringEnvDefault("OPENAI_API_KEY", ""),

		DiscordHookURL: getStringEnvDefault("DISCORD_HOOK_URL", ""),
	}

	if path := getStringEnvDefault("COURTS_FILE", ""); path != "" {
		courts, err := LoadCourts(path)
		if err != nil {
			fmt.Printf("Could not load %s, keeping DINING_COURTS: %v\n", path, err)
		} else if len(courts) > 0 {
			conf.Courts = courts
		}
	}

	return conf
}

func getBoolEnvDefault(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getStringEnvDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getIntEnvDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func getFloatEnvDefault(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}

	fmt.Printf("Using default value for %s\n", key)
	return defaultValue
}

func parseList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
