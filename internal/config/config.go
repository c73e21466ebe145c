package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"kasirinaja/posclient/internal/domain"
)

type Config struct {
	Port                 string
	AllowedOrigin        string
	AuthorityURL         string
	AuthorityToken       string
	PushURL              string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	SnapshotTTLMinutes   int
	StoreID              string
	TaxRatePercent       float64
	ServiceRatePercent   float64
	TaxType              string
	LoyaltySpendPerPoint float64
	ProbeIntervalSeconds int
	ReplayRatePerSecond  float64
	RequestTimeoutSec    int
	AuthSecret           string
	ManagerPIN           string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	taxType := strings.ToLower(getEnv("TAX_TYPE", domain.TaxTypeExclusive))
	if taxType != domain.TaxTypeInclusive {
		taxType = domain.TaxTypeExclusive
	}

	cfg := Config{
		Port:                 getEnv("PORT", "8787"),
		AllowedOrigin:        getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		AuthorityURL:         strings.TrimSpace(os.Getenv("AUTHORITY_URL")),
		AuthorityToken:       strings.TrimSpace(os.Getenv("AUTHORITY_TOKEN")),
		PushURL:              strings.TrimSpace(os.Getenv("PUSH_URL")),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              redisDB,
		SnapshotTTLMinutes:   getInt("SNAPSHOT_TTL_MINUTES", 0, 0),
		StoreID:              strings.TrimSpace(os.Getenv("DEFAULT_STORE_ID")),
		TaxRatePercent:       getFloat("TAX_RATE_PERCENT", 0),
		ServiceRatePercent:   getFloat("SERVICE_RATE_PERCENT", 0),
		TaxType:              taxType,
		LoyaltySpendPerPoint: getFloat("LOYALTY_SPEND_PER_POINT", 10000),
		ProbeIntervalSeconds: getInt("PROBE_INTERVAL_SECONDS", 15, 1),
		ReplayRatePerSecond:  getFloat("REPLAY_RATE_PER_SECOND", 5),
		RequestTimeoutSec:    getInt("REQUEST_TIMEOUT_SECONDS", 10, 1),
		AuthSecret:           strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		ManagerPIN:           strings.TrimSpace(os.Getenv("MANAGER_PIN")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// DefaultSettings are used for pricing until the store's snapshot summary
// delivers its own tax and service settings.
func (c Config) DefaultSettings() domain.StoreSettings {
	return domain.StoreSettings{
		TaxRate:     c.TaxRatePercent,
		ServiceRate: c.ServiceRatePercent,
		TaxType:     c.TaxType,
	}
}

func (c Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSeconds) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, floor int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || v < floor {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
