package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	FrontendURL   string

	// Text generation
	OpenAIAPIKey string
	Model        string
	PromptSpec   string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Optional workflow engine (n8n-style webhook). When set, Co-Pilot
	// commands and CSV imports are delegated instead of handled in-process.
	WorkflowWebhookURL string
	WorkflowAPIKey     string
	ImportWebhookURL   string
	ImportAPIKey       string

	// OAuth sign-in (hosted auth provider)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthRedirectURL  string
	OAuthScopes       []string

	// Session persistence across restarts
	SessionFile string

	// Optional fixed user id for local testing without the auth provider
	DevUserID string

	// Generator retry policy
	GeneratorRetries int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:               getEnvDefault("PORT", "8080"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "*"),
		FrontendURL:        getEnvDefault("FRONTEND_URL", "http://localhost:3000"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		Model:              getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		PromptSpec:         getEnvDefault("COPILOT_PROMPT_SPEC", "./prompts/copilot.yaml"),
		DatabaseURL:        os.Getenv("DB_URL"),
		MigrationsDir:      getEnvDefault("MIGRATIONS_DIR", "./migrations"),
		WorkflowWebhookURL: os.Getenv("COPILOT_WEBHOOK_URL"),
		WorkflowAPIKey:     os.Getenv("COPILOT_WEBHOOK_API_KEY"),
		ImportWebhookURL:   os.Getenv("IMPORT_WEBHOOK_URL"),
		ImportAPIKey:       os.Getenv("IMPORT_WEBHOOK_API_KEY"),
		OAuthClientID:      os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:  os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:       os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:      os.Getenv("OAUTH_TOKEN_URL"),
		OAuthUserInfoURL:   os.Getenv("OAUTH_USERINFO_URL"),
		OAuthRedirectURL:   getEnvDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		OAuthScopes:        getEnvListDefault("OAUTH_SCOPES", []string{"openid", "email"}),
		SessionFile:        getEnvDefault("SESSION_FILE", "data/sessions.json"),
		DevUserID:          os.Getenv("AUTH_DEV_USER"),
		GeneratorRetries:   getEnvIntDefault("GENERATOR_RETRIES", 2),
	}
	if cfg.OpenAIAPIKey == "" && cfg.WorkflowWebhookURL == "" {
		log.Println("warning: OPENAI_API_KEY is not set and no workflow webhook configured; Co-Pilot commands will fail until one is provided")
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
