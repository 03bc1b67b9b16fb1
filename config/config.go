// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	BlobBackendLocal = "local"
	BlobBackendR2    = "r2"
)

// Config holds everything main needs to wire the service. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port           string
	AllowedOrigins string

	LogLevel  string
	LogFormat string

	StoreDriver string
	DatabaseURL string

	BlobBackend    string
	UploadDir      string
	MaxUploadBytes int64
	R2             R2Config

	Ledger LedgerConfig

	RedisURL      string
	OperatorToken string

	StreakSweepInterval time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ConfirmTimeout  time.Duration
}

// Enabled reports whether task creation should also stake on-chain.
func (l LedgerConfig) Enabled() bool {
	return l.RPCURL != ""
}

// LoadDotEnv loads .env into the process environment if present. It reports
// whether a file was found so callers can log it.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		AllowedOrigins: normalizeOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		BlobBackend:    strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal)),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		Ledger: LedgerConfig{
			RPCURL:          os.Getenv("LEDGER_RPC_URL"),
			ContractAddress: os.Getenv("LEDGER_CONTRACT_ADDRESS"),
			PrivateKey:      os.Getenv("LEDGER_PRIVATE_KEY"),
		},
		RedisURL:      os.Getenv("REDIS_URL"),
		OperatorToken: os.Getenv("OPERATOR_TOKEN"),
	}

	var err error
	if cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 10<<20); err != nil {
		return nil, err
	}
	if cfg.Ledger.ConfirmTimeout, err = getDuration("LEDGER_CONFIRM_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StreakSweepInterval, err = getDuration("STREAK_SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (use postgres or memory)", c.StoreDriver)
	}

	switch c.BlobBackend {
	case BlobBackendLocal:
	case BlobBackendR2:
		if c.R2.AccountID == "" || c.R2.Bucket == "" {
			return fmt.Errorf("CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME are required for the r2 blob backend")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q (use local or r2)", c.BlobBackend)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	if c.Ledger.Enabled() {
		if c.Ledger.ContractAddress == "" || c.Ledger.PrivateKey == "" {
			return fmt.Errorf("LEDGER_CONTRACT_ADDRESS and LEDGER_PRIVATE_KEY are required when LEDGER_RPC_URL is set")
		}
		if c.Ledger.ConfirmTimeout <= 0 {
			return fmt.Errorf("LEDGER_CONFIRM_TIMEOUT must be positive")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

// normalizeOrigins trims the comma-separated ALLOWED_ORIGINS list for fiber's CORS config.
func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
