package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	JWTSecret       string
	AdminUserIDs    []int64 // may upload and generate questions

	// Database
	DBDriver    string // postgres | sqlite
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBPath      string

	// Catalog index files (questionSet.json, questionLevels.json)
	CatalogDir string

	// LLM
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string

	GeneratorVerify  bool
	GeneratorWorkers int

	// Email
	AWSRegion    string
	SESFromEmail string
	AppBaseURL   string

	SessionIdleTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		JWTSecret:       getEnv("JWT_SECRET", "act-prep-dev-signing-key"),
		AdminUserIDs:    getIDList("ADMIN_USER_IDS"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "act_user"),
		DBPassword:  getEnv("DB_PASSWORD", "act_password"),
		DBName:      getEnv("DB_NAME", "act_prep"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		DBPath:      getEnv("DB_PATH", "./act_prep.db"),

		CatalogDir: getEnv("CATALOG_DIR", "./data/catalog"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		GeneratorVerify:  getBool("GENERATOR_VERIFY", false),
		GeneratorWorkers: getInt("GENERATOR_WORKERS", 2),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:3000"),

		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
	}
}

// PostgresDSN returns DATABASE_URL when set, otherwise a keyword DSN built
// from the individual DB_* variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: %s=%q is not a positive integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: %s=%q is not a valid duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getIDList(key string) []int64 {
	var ids []int64
	for _, part := range splitList(os.Getenv(key)) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("config: ignoring %s entry %q", key, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
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
