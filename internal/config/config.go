// Package config loads server settings from flags with environment fallbacks.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Addr         string
	DSN          string
	MaxConns     int32
	SessionKey   string
	Dev          bool
	ImportOnBoot bool

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string
	PlaidBaseURL  string
	PlaidTimeout  time.Duration

	CallTimeout     time.Duration
	TxPageSize      int
	TxLookbackDays  int
	ShutdownTimeout time.Duration
}

// Load parses args (without the program name). Flags win over environment variables.
func Load(args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("fibox-server", flag.ContinueOnError)

	fs.StringVar(&c.Addr, "addr", ":"+getEnv("PORT", "4000"), "listen address")
	fs.StringVar(&c.DSN, "dsn", getEnv("DATABASE_URL", "postgres://postgres@localhost:5432/hackweek2?sslmode=disable"), "PostgreSQL DSN")
	maxConns := fs.Int("max-conns", getIntEnv("DB_MAX_CONNS", 100), "pgx pool size")
	fs.StringVar(&c.SessionKey, "session-key", os.Getenv("SESSION_KEY"), "HS256 key for session tokens (required)")
	fs.BoolVar(&c.Dev, "dev", false, "development logging")
	fs.BoolVar(&c.ImportOnBoot, "import-legacy", true, "import legacy item fields on startup")

	fs.StringVar(&c.PlaidClientID, "plaid-client-id", os.Getenv("PLAID_CLIENT_ID"), "Plaid client id (required)")
	fs.StringVar(&c.PlaidSecret, "plaid-secret", os.Getenv("PLAID_SECRET"), "Plaid secret (required)")
	fs.StringVar(&c.PlaidEnv, "plaid-env", getEnv("PLAID_ENV", "sandbox"), "Plaid environment: sandbox, development, production")
	fs.StringVar(&c.PlaidBaseURL, "plaid-url", os.Getenv("PLAID_URL"), "override Plaid base URL")
	fs.DurationVar(&c.PlaidTimeout, "plaid-timeout", 30*time.Second, "HTTP client timeout for Plaid")

	fs.DurationVar(&c.CallTimeout, "provider-call-timeout", 20*time.Second, "bound on each per-item provider call")
	fs.IntVar(&c.TxPageSize, "tx-page-size", 35, "transactions requested per call")
	fs.IntVar(&c.TxLookbackDays, "tx-lookback-days", 365, "default transaction range when no start_date is given")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown bound")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrValidation, err)
	}
	c.MaxConns = int32(*maxConns)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch {
	case c.SessionKey == "":
		return fmt.Errorf("%w: missing session key (-session-key or SESSION_KEY)", errs.ErrValidation)
	case c.PlaidClientID == "" || c.PlaidSecret == "":
		return fmt.Errorf("%w: missing Plaid credentials", errs.ErrValidation)
	case c.MaxConns <= 0:
		return fmt.Errorf("%w: max-conns must be positive", errs.ErrValidation)
	case c.TxPageSize <= 0 || c.TxPageSize > 500:
		return fmt.Errorf("%w: tx-page-size must be in 1..500", errs.ErrValidation)
	case c.CallTimeout <= 0:
		return fmt.Errorf("%w: provider-call-timeout must be positive", errs.ErrValidation)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
