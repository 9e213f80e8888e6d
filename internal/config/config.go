// Package config loads the settings of the device CLI and the numbering
// authority from the environment and an optional .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Environment string
	LogLevel    string

	Ledger      LedgerConfig
	Reservation ReservationConfig
	Numbering   NumberingConfig
	Server      ServerConfig
}

// LedgerConfig describes the local store and the identity of the device.
type LedgerConfig struct {
	DBPath string
	OrgID  string
	UserID string
}

// ReservationConfig points the device at the numbering authority. An empty
// URL keeps the device offline.
type ReservationConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// NumberingConfig tunes range refills.
type NumberingConfig struct {
	LowWater  int64
	BlockSize int
}

// ServerConfig configures the numbering authority.
type ServerConfig struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment: getenv("APP_ENV", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Ledger: LedgerConfig{
			DBPath: getenv("LEDGER_DB_PATH", "fieldledger.db"),
			OrgID:  strings.TrimSpace(getenv("LEDGER_ORG_ID", "")),
			UserID: strings.TrimSpace(getenv("LEDGER_USER_ID", "")),
		},
		Reservation: ReservationConfig{
			URL:     strings.TrimSpace(getenv("LEDGER_RESERVATION_URL", "")),
			Token:   strings.TrimSpace(getenv("LEDGER_RESERVATION_TOKEN", "")),
			Timeout: getenvDuration("LEDGER_RESERVATION_TIMEOUT", 10*time.Second),
		},
		Numbering: NumberingConfig{
			LowWater:  int64(getenvInt("LEDGER_NUMBERING_LOW_WATER", 5)),
			BlockSize: getenvInt("LEDGER_NUMBERING_BLOCK", 80),
		},
		Server: ServerConfig{
			Port:        getenv("APP_PORT", "8080"),
			DatabaseURL: strings.TrimSpace(getenv("DATABASE_URL", "")),
			JWTSecret:   strings.TrimSpace(getenv("JWT_SECRET", "")),
		},
	}
}

// IsDevelopment reports whether console logging should be used.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ValidateDevice checks the settings the device CLI cannot run without.
func (c Config) ValidateDevice() error {
	var errs []error
	if c.Ledger.DBPath == "" {
		errs = append(errs, errors.New("LEDGER_DB_PATH is required"))
	}
	if c.Ledger.OrgID == "" {
		errs = append(errs, errors.New("LEDGER_ORG_ID is required"))
	}
	if c.Numbering.BlockSize <= 0 || c.Numbering.LowWater < 0 {
		errs = append(errs, errors.New("numbering block must be positive and low water not negative"))
	}
	return errors.Join(errs...)
}

// ValidateServer checks the settings the authority cannot run without.
func (c Config) ValidateServer() error {
	var errs []error
	if c.Server.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getenvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getenvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
