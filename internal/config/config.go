package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LedgerDSN   string
	LogLevel    string

	AdminAPIKey   string
	SourceAccount string
	SignerID      string

	BackendKind         string
	NativeEndpoint      string
	InterledgerEndpoint string
	CorridorID          string

	CustodyAddr  string
	CustodyToken string

	MaxAttestationAge time.Duration

	AmountCeiling  string
	BalanceReserve string

	PolicyBundlePath string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitMaxKeys  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:            addr,
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		LedgerDSN:           os.Getenv("LEDGER_DSN"),
		LogLevel:            envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:         os.Getenv("ADMIN_API_KEY"),
		SourceAccount:       os.Getenv("SOURCE_ACCOUNT"),
		SignerID:            envDefault("SIGNER_ID", "gate"),
		BackendKind:         envDefault("BACKEND_KIND", "memory"),
		NativeEndpoint:      os.Getenv("NATIVE_ENDPOINT"),
		InterledgerEndpoint: os.Getenv("INTERLEDGER_ENDPOINT"),
		CorridorID:          os.Getenv("CORRIDOR_ID"),
		CustodyAddr:         os.Getenv("CUSTODY_ADDR"),
		CustodyToken:        os.Getenv("CUSTODY_TOKEN"),
		MaxAttestationAge:   time.Duration(envIntDefault("MAX_ATTESTATION_AGE_SECONDS", 300)) * time.Second,
		AmountCeiling:       os.Getenv("AMOUNT_CEILING"),
		BalanceReserve:      envDefault("BALANCE_RESERVE", "0"),
		PolicyBundlePath:    os.Getenv("POLICY_BUNDLE_PATH"),
		RateLimitRequests:   envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:     time.Duration(envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitMaxKeys:    envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
