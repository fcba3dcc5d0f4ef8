package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds CLI settings read from the environment. BaseURL is the API
// root without the version segment: OPENAI_BASE_URL is conventionally set to
// ".../v1", and the client adds that itself.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	Dimensions   int
}

// LoadConfig reads an optional .env file, then the environment. Variables
// already set in the environment win over the file.
func LoadConfig(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("Skipping .env ...", "file", envFile, "error", err)
	}

	cfg := &Config{
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		BaseURL:      trimVersion(os.Getenv("OPENAI_BASE_URL")),
		Organization: os.Getenv("OPENAI_ORG_ID"),
		Model:        os.Getenv("OAIEMBED_MODEL"),
	}

	if s := os.Getenv("OAIEMBED_DIMENSIONS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid OAIEMBED_DIMENSIONS %q: %w", s, err)
		}
		cfg.Dimensions = n
	}

	return cfg, nil
}

// trimVersion drops a trailing "/v1" so that requests do not go to /v1/v1.
func trimVersion(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if root, ok := strings.CutSuffix(trimmed, "/v1"); ok {
		return root
	}
	return baseURL
}
