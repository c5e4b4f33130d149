package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"smart-scheduler/internal/db"
)

type Config struct {
	HTTPAddr string

	DBDriver   string // postgres | sqlite
	DBPath     string // sqlite file, ":memory:" in tests
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret   string
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	PolicyFile    string
	RefreshCron   string
	RefreshOwners []int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	AIRatePerSec  int
}

func Load() *Config {
	// DB_PORT falls back to the postgres default
	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		port = 5432
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	rate, err := strconv.Atoi(os.Getenv("AI_RATE_PER_SEC"))
	if err != nil || rate <= 0 {
		rate = 1
	}

	return &Config{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),

		DBDriver:   driverName(envOr("DB_DRIVER", db.Postgres)),
		DBPath:     envOr("DB_PATH", "smart_scheduler.db"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     port,
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(envOr("CORS_ORIGINS", "*")),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "console"),

		PolicyFile:    os.Getenv("POLICY_FILE"),
		RefreshCron:   os.Getenv("REFRESH_CRON"),
		RefreshOwners: parseInts(os.Getenv("REFRESH_OWNERS")),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   model,
		OpenAIBaseURL: envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AIRatePerSec:  rate,
	}
}

// ConnString returns the data source name for the configured driver.
func (c *Config) ConnString() string {
	if driverName(c.DBDriver) == db.SQLite {
		return c.DBPath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// driverName resolves aliases such as "sqlite3". Unknown names pass through
// lowercased so db.Connect can report them.
func driverName(s string) string {
	if n, err := db.NormalizeDriver(s); err == nil {
		return n
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts(s string) []int {
	var out []int
	for _, part := range splitList(s) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}
