package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendCSV      = "csv"
	BackendSheets   = "sheets"

	defaultOpenRouterModel = "mistralai/mistral-7b-instruct"
	defaultGeminiModel     = "gemini-1.5-flash-latest"
	defaultCompletionURL   = "https://openrouter.ai/api/v1/chat/completions"
)

type Config struct {
	CompletionProvider string
	OpenRouterAPIKey   string
	GeminiAPIKey       string
	CompletionModel    string
	CompletionURL      string
	CompletionTimeout  time.Duration
	SiteURL            string
	SiteName           string

	StoreBackend          string
	DatabaseURL           string
	DataDir               string
	SheetsSpreadsheetID   string
	SheetsCredentialsFile string

	HTTPPort      string
	LogLevel      string
	SessionSecret string
	SessionTTL    time.Duration
	AnonymousTTL  time.Duration
	MirrorTimeout time.Duration
}

// Load reads the optional .env file and then the process environment.
// Missing required values are reported together in one error.
func Load() (*Config, error) {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()
	return fromEnv(true)
}

// LoadForTools is Load without the provider key and session secret checks,
// for commands that only touch the store.
func LoadForTools() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(false)
}

func fromEnv(serving bool) (*Config, error) {
	cfg := &Config{
		CompletionProvider:    strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderOpenRouter)),
		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		CompletionURL:         getEnv("COMPLETION_URL", defaultCompletionURL),
		SiteURL:               getEnv("OPENROUTER_SITE_URL", ""),
		SiteName:              getEnv("OPENROUTER_SITE_NAME", "Data Analyst AI Assistant"),
		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite)),
		DatabaseURL:           getEnv("DATABASE_URL", "analyst_assistant.db"),
		DataDir:               getEnv("DATA_DIR", "."),
		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		LogLevel:              strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		SessionSecret:         getEnv("SESSION_SECRET", ""),
	}

	var errs []error

	switch cfg.CompletionProvider {
	case ProviderOpenRouter:
		cfg.CompletionModel = getEnv("COMPLETION_MODEL", defaultOpenRouterModel)
		if serving && cfg.OpenRouterAPIKey == "" {
			errs = append(errs, errors.New("OPENROUTER_API_KEY environment variable is required"))
		}
	case ProviderGemini:
		cfg.CompletionModel = getEnv("COMPLETION_MODEL", defaultGeminiModel)
		if serving && cfg.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY environment variable is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown COMPLETION_PROVIDER %q", cfg.CompletionProvider))
	}

	switch cfg.StoreBackend {
	case BackendSQLite, BackendCSV:
	case BackendPostgres:
		if _, ok := os.LookupEnv("DATABASE_URL"); !ok {
			errs = append(errs, errors.New("DATABASE_URL environment variable is required for the postgres backend"))
		}
	case BackendSheets:
		if cfg.SheetsSpreadsheetID == "" {
			errs = append(errs, errors.New("SHEETS_SPREADSHEET_ID environment variable is required for the sheets backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend))
	}

	if serving && cfg.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET environment variable is required"))
	}

	var err error
	if cfg.CompletionTimeout, err = getEnvAsDuration("COMPLETION_TIMEOUT", 60*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = getEnvAsDuration("SESSION_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.AnonymousTTL, err = getEnvAsDuration("ANON_SESSION_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.MirrorTimeout, err = getEnvAsDuration("MIRROR_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, valueStr, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
