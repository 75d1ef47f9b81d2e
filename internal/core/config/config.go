package config

import (
	"fmt"
	"log/slog" // Use the new structured logger
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

type Config struct {
	Port        string
	DatabaseURL string // empty: run on memory + remote store only
	RemoteURL   string // virtual office / remote store endpoint
	Env         string

	SyncInterval    time.Duration
	AccrualInterval time.Duration

	FallbackInstrument domain.Instrument
	Fees               map[domain.Level]decimal.Decimal

	CashierKeyHashes  []string
	ReviewerKeyHashes []string
}

// LoadConfig reads .env file and returns a Config struct
func LoadConfig() (*Config, error) {
	// Try loading .env file (it might not exist in Production, which is fine)
	err := godotenv.Load()
	if err != nil {
		// We use Warn because it's not a crash, but it's worth noting
		slog.Warn("No .env file found, relying on System Env Variables")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RemoteURL:          getEnv("REMOTE_URL", ""),
		Env:                getEnv("ENV", "development"),
		FallbackInstrument: domain.Instrument(strings.ToUpper(getEnv("FALLBACK_INSTRUMENT", string(domain.Transfer)))),
		CashierKeyHashes:   getList("CASHIER_KEY_HASHES"),
		ReviewerKeyHashes:  getList("REVIEWER_KEY_HASHES"),
	}
	if !cfg.FallbackInstrument.Valid() {
		return nil, fmt.Errorf("FALLBACK_INSTRUMENT %q is not a known instrument", cfg.FallbackInstrument)
	}

	if cfg.SyncInterval, err = getDuration("SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AccrualInterval, err = getDuration("ACCRUAL_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	// every level must be configured; a missing fee would silently understate debt
	cfg.Fees = make(map[domain.Level]decimal.Decimal, len(domain.Levels))
	for _, level := range domain.Levels {
		key := "FEE_" + string(level)
		raw, ok := os.LookupEnv(key)
		if !ok {
			return nil, fmt.Errorf("%s is not set", key)
		}
		amount, err := domain.NewAmount(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		cfg.Fees[level] = amount
	}

	return cfg, nil
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}

// getList splits a comma separated variable, dropping blanks
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
