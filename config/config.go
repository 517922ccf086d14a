/*
config.go - Process configuration

PURPOSE:
  Reads server settings from the environment, optionally seeded from a
  .env file. Command-line flags in cmd/server override the port and the
  database path.

VARIABLES:
  PAYROLL_PORT                  HTTP port (default 8080)
  PAYROLL_DB                    SQLite path (default payroll.db)
  PAYROLL_LOG_LEVEL             zerolog level (default info)
  PAYROLL_LOG_FORMAT            json | human (default json)
  PAYROLL_CURRENCY_LOCALE       Display locale, e.g. pt-BR (default pt-BR)
  PAYROLL_CORS_ORIGINS          Comma separated allowed origins
  PAYROLL_EVENT_BUFFER          Ledger notification queue size (default 256)
  PAYROLL_OVERTIME_THRESHOLD    Hours per bonus (default 8)
  PAYROLL_OVERTIME_CONVERSION   true | false (default false)
  PAYROLL_OVERTIME_MODE         per_day | event_total (default per_day)

The overtime variables only seed the settings on first start. Settings
saved through the API win afterwards.

SEE ALSO:
  - factory/settings.go: Settings validation shared with the API
  - cmd/server/main.go: Consumer
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/crew-payroll/factory"
	"github.com/warp/crew-payroll/payroll"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Log      LogConfig
	Payroll  PayrollConfig
}

type AppConfig struct {
	Port        int
	CORSOrigins []string
	EventBuffer int
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level  zerolog.Level
	Format string
}

// PayrollConfig holds deployment-wide payroll defaults.
type PayrollConfig struct {
	CurrencyLocale string
	Overtime       payroll.TeamSettings
}

// Load reads the given .env files, or ./.env when none are named, and then
// the process environment. Variables already set in the environment are
// never overridden by a file. A missing file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}

	port, err := strconv.Atoi(getEnv("PAYROLL_PORT", "8080"))
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid PAYROLL_PORT %q", os.Getenv("PAYROLL_PORT"))
	}
	buffer, err := strconv.Atoi(getEnv("PAYROLL_EVENT_BUFFER", "256"))
	if err != nil || buffer < 0 {
		return nil, fmt.Errorf("invalid PAYROLL_EVENT_BUFFER %q", os.Getenv("PAYROLL_EVENT_BUFFER"))
	}
	cfg.App = AppConfig{
		Port:        port,
		CORSOrigins: getEnvSlice("PAYROLL_CORS_ORIGINS"),
		EventBuffer: buffer,
	}

	cfg.Database = DatabaseConfig{Path: getEnv("PAYROLL_DB", "payroll.db")}

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("PAYROLL_LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_LOG_LEVEL: %w", err)
	}
	format := strings.ToLower(getEnv("PAYROLL_LOG_FORMAT", "json"))
	if format != "json" && format != "human" {
		return nil, fmt.Errorf("invalid PAYROLL_LOG_FORMAT %q: use json or human", format)
	}
	cfg.Log = LogConfig{Level: level, Format: format}

	overtime, err := loadOvertime()
	if err != nil {
		return nil, err
	}
	cfg.Payroll = PayrollConfig{
		CurrencyLocale: getEnv("PAYROLL_CURRENCY_LOCALE", "pt-BR"),
		Overtime:       overtime,
	}

	return cfg, nil
}

func loadOvertime() (payroll.TeamSettings, error) {
	var sj factory.TeamSettingsJSON

	if v := os.Getenv("PAYROLL_OVERTIME_THRESHOLD"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			return payroll.TeamSettings{}, fmt.Errorf("invalid PAYROLL_OVERTIME_THRESHOLD: %w", err)
		}
		sj.ThresholdHours = &threshold
	}
	if v := os.Getenv("PAYROLL_OVERTIME_CONVERSION"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return payroll.TeamSettings{}, fmt.Errorf("invalid PAYROLL_OVERTIME_CONVERSION: %w", err)
		}
		sj.ConversionEnabled = enabled
	}
	sj.Mode = os.Getenv("PAYROLL_OVERTIME_MODE")

	settings, err := factory.FromJSON(sj)
	if err != nil {
		return payroll.TeamSettings{}, fmt.Errorf("overtime settings: %w", err)
	}
	return settings, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
