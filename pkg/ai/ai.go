package ai

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kotrzina/dining-menu/pkg/config"
	"github.com/kotrzina/dining-menu/pkg/prometheus"
	"github.com/kotrzina/dining-menu/pkg/scraper"
	"github.com/kotrzina/dining-menu/pkg/utils"
	"github.com/sirupsen/logrus"
)

// prompt instructs the model how a meal plan looks like
//
//go:embed plan.prompt
var prompt string

// safetyLoopLimit caps the number of tool round trips of one request.
const safetyLoopLimit = 8

// planRequest is the user message opening every conversation.
const planRequest = "Create my meal plans."

// RenderPrompt fills the prompt template with the goals and the menu text.
func RenderPrompt(goals Goals, food string) string {
	macros := MacroTargets(goals)

	restrictions := "None"
	if len(goals.DietaryRestrictions) > 0 {
		restrictions = strings.Join(goals.DietaryRestrictions, ", ")
	}
	notes := goals.Notes
	if notes == "" {
		notes = "None"
	}

	return strings.NewReplacer(
		"${datetime}", utils.FormatDate(time.Now()),
		"${calories}", strconv.Itoa(goals.TargetCalories),
		"${protein}", strconv.Itoa(macros.Protein),
		"${protein_pct}", strconv.Itoa(goals.ProteinPercentage),
		"${carbs}", strconv.Itoa(macros.Carbs),
		"${carb_pct}", strconv.Itoa(goals.CarbPercentage),
		"${fat}", strconv.Itoa(macros.Fat),
		"${fat_pct}", strconv.Itoa(goals.FatPercentage),
		"${meals}", strconv.Itoa(goals.MealsPerDay),
		"${restrictions}", restrictions,
		"${notes}", notes,
		"${food}", food,
	).Replace(prompt)
}

// Provider generates a meal plan text for a rendered prompt.
type Provider interface {
	GetPlan(ctx context.Context, prompt string, tools []Tool) (Response, error)
	Available() bool // provider is configured
}

type Ai struct {
	providers map[string]Provider
	template  *Template

	config  *config.Config
	monitor *prometheus.Monitor
	logger  *logrus.Logger
}

func NewAi(conf *config.Config, m *prometheus.Monitor, l *logrus.Logger) *Ai {
	return &Ai{
		providers: map[string]Provider{
			"openai":    NewOpenAi(conf, m, l),
			"anthropic": NewAnthropic(conf, m, l),
		},
		template: &Template{},

		config:  conf,
		monitor: m,
		logger:  l,
	}
}

// Plan is a generated meal plan.
type Plan struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Court    string `json:"court"`
	Cost     Cost   `json:"cost"`
}

// GetPlan creates a meal plan for the goals from the menu. The configured provider is
// used when it has credentials, the offline template otherwise or when the provider fails.
func (ai *Ai) GetPlan(ctx context.Context, goals Goals, m scraper.DailyMenu) (Plan, error) {
	goals = goals.WithDefaults()
	if err := goals.Validate(); err != nil {
		return Plan{}, err
	}

	court, _ := PickCourt(m)
	plan := Plan{Court: court.DiningCourt}

	providerName := ai.config.AiProvider
	p, ok := ai.providers[providerName]
	if ok && p.Available() {
		resp, err := p.GetPlan(ctx, RenderPrompt(goals, FormatCourt(court)), menuTools(m))
		if err == nil {
			plan.Text = resp.Text
			plan.Provider = providerName
			plan.Cost = resp.Cost
			ai.monitor.PlansGenerated.WithLabelValues(providerName).Inc()
			return plan, nil
		}
		ai.logger.Errorf("Provider %s failed, using template: %v", providerName, err)
	} else if providerName != templateProvider {
		ai.logger.Debugf("Provider %s is not available, using template", providerName)
	}

	plan.Text = ai.template.Render(goals, m, time.Now())
	plan.Provider = templateProvider
	ai.monitor.PlansGenerated.WithLabelValues(templateProvider).Inc()

	return plan, nil
}

type Response struct {
	Text string `json:"text"`
	Cost Cost   `json:"cost"`
}

type Cost struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type SchemaType uint8

const (
	SchemaTypeObject SchemaType = iota
	SchemaTypeArray
	SchemaTypeBoolean
	SchemaTypeInteger
	SchemaTypeString
)

// String returns the JSON schema type name.
func (t SchemaType) String() string {
	switch t {
	case SchemaTypeObject:
		return "object"
	case SchemaTypeArray:
		return "array"
	case SchemaTypeBoolean:
		return "boolean"
	case SchemaTypeInteger:
		return "integer"
	default:
		return "string"
	}
}

type Tool struct {
	Name        string
	Description string
	HasSchema   bool
	Schema      Property

	Fn func(string) (string, error)
}

type Property struct {
	Type        SchemaType
	Description string
	Properties  map[string]Property
	Enum        []interface{} // depends on the type
	Required    []string
}

// GetEnumAsStrings returns the Enum field as a slice of strings.
// it is useful for services which does support strings only (like Anthropic)
func (d *Property) GetEnumAsStrings() []string {
	if d.Enum == nil {
		return nil
	}

	ret := make([]string, len(d.Enum))
	for i, v := range d.Enum {
		ret[i] = fmt.Sprint(v)
	}

	return ret
}
