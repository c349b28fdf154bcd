// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Requirements captures the minimum data each statistical model needs before
// it will produce a result. Spans are measured in calendar days of history,
// not recency.
type Requirements struct {
	MinDays                 int // minimum days the data must span
	MinTransactions         int // minimum total transactions
	MinExpenses             int // minimum expense transactions
	MinCategoryTransactions int // minimum transactions per category
	GoalsMinMonths          int // minimum months of savings history for goals

	ForecastPeriodDays    int // default forecast horizon
	SavingsAnalysisMonths int // months analyzed for savings capacity
}

// Config is the full service configuration.
type Config struct {
	Port            string
	UseMemoryStore  bool
	GCPProject      string
	AnthropicAPIKey string
	AnthropicModel  string

	Requirements Requirements
}

// Load reads configuration from a .env file (if present) and the process
// environment. Missing values fall back to defaults that match the documented
// model requirements.
func Load() Config {
	// Best effort; the environment wins when both are set.
	_ = godotenv.Load()

	return Config{
		Port:            getEnv("PORT", "8111"),
		UseMemoryStore:  os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENV") == "local",
		GCPProject:      getEnv("GOOGLE_CLOUD_PROJECT", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		Requirements: Requirements{
			MinDays:                 getEnvInt("MIN_DAYS_OF_DATA", 30),
			MinTransactions:         getEnvInt("MIN_TRANSACTIONS", 30),
			MinExpenses:             getEnvInt("MIN_EXPENSES", 20),
			MinCategoryTransactions: getEnvInt("MIN_CATEGORY_TRANSACTIONS", 5),
			GoalsMinMonths:          getEnvInt("GOALS_MIN_MONTHS", 1),
			ForecastPeriodDays:      getEnvInt("FORECAST_PERIOD_DAYS", 30),
			SavingsAnalysisMonths:   getEnvInt("SAVINGS_ANALYSIS_MONTHS", 6),
		},
	}
}

// DefaultRequirements returns the standard model data requirements.
func DefaultRequirements() Requirements {
	return Requirements{
		MinDays:                 30,
		MinTransactions:         30,
		MinExpenses:             20,
		MinCategoryTransactions: 5,
		GoalsMinMonths:          1,
		ForecastPeriodDays:      30,
		SavingsAnalysisMonths:   6,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
