package properties

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultWorkers = 2

// Config holds settings read from the environment. CLI flags override them.
type Config struct {
	RootPath          string
	ExtractRoot       string
	Workers           int
	LogLevel          slog.Level
	LogFormat         string
	DiscordErrorURL   string
	DiscordSuccessURL string
}

type ErrInvalidEnvVar struct {
	Name  string
	Value string
}

func (e *ErrInvalidEnvVar) Error() string {
	return fmt.Sprintf("environment variable %s has invalid value %q", e.Name, e.Value)
}

func RootPath() string {
	if root := os.Getenv("ROOT_PATH"); root != "" {
		return root
	}
	return "."
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

// Load reads the configuration from environment variables, applying defaults
// for anything unset.
func Load() (*Config, error) {
	config := Config{
		RootPath:          RootPath(),
		Workers:           defaultWorkers,
		LogLevel:          slog.LevelInfo,
		LogFormat:         "text",
		DiscordErrorURL:   DiscordErrorNotificationUrl(),
		DiscordSuccessURL: DiscordSuccessNotificationUrl(),
	}

	config.ExtractRoot = os.Getenv("EXTRACT_ROOT")
	if config.ExtractRoot == "" {
		config.ExtractRoot = filepath.Join(config.RootPath, "extracted")
	}

	if value := os.Getenv("WORKERS"); value != "" {
		workers, err := strconv.Atoi(value)
		if err != nil || workers < 1 {
			return nil, &ErrInvalidEnvVar{Name: "WORKERS", Value: value}
		}
		config.Workers = workers
	}

	if value := os.Getenv("LOG_LEVEL"); value != "" {
		if err := config.LogLevel.UnmarshalText([]byte(value)); err != nil {
			return nil, &ErrInvalidEnvVar{Name: "LOG_LEVEL", Value: value}
		}
	}

	if value := os.Getenv("LOG_FORMAT"); value != "" {
		value = strings.ToLower(value)
		if value != "text" && value != "json" {
			return nil, &ErrInvalidEnvVar{Name: "LOG_FORMAT", Value: value}
		}
		config.LogFormat = value
	}

	return &config, nil
}

// Logger builds the structured logger described by the configuration.
func (c *Config) Logger() *slog.Logger {
	options := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, options))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}
