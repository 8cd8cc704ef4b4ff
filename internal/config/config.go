package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port            string
	AllowedOrigins  []string
	StoreDriver     string
	DatabaseURL     string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SummaryCacheTTL time.Duration
	JWTSecret       string
	TokenTTL        time.Duration
	GoogleAudiences []string
	Timezone        string
	PhoneRegion     string
	LogLevel        string
}

// Load reads .env when present, then the process environment. The JWT
// secret and Google audiences have no defaults.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("MONGO_DB", "billmng")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SUMMARY_CACHE_TTL_SECONDS", 30)
	v.SetDefault("TOKEN_TTL_HOURS", 168)
	v.SetDefault("APP_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("PHONE_REGION", "IN")
	v.SetDefault("LOG_LEVEL", "info")

	cacheTTL := v.GetInt("SUMMARY_CACHE_TTL_SECONDS")
	if cacheTTL < 0 {
		cacheTTL = 0
	}
	tokenTTL := v.GetInt("TOKEN_TTL_HOURS")
	if tokenTTL < 1 {
		tokenTTL = 168
	}

	audiences := make([]string, 0, 4)
	for _, raw := range []string{v.GetString("GOOGLE_CLIENT_ID"), v.GetString("GOOGLE_ANDROID_CLIENT_ID"), v.GetString("GOOGLE_ALLOWED_CLIENT_IDS")} {
		for _, aud := range splitList(raw) {
			if !contains(audiences, aud) {
				audiences = append(audiences, aud)
			}
		}
	}

	cfg := Config{
		Port:            strings.TrimSpace(v.GetString("PORT")),
		AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
		StoreDriver:     strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		DatabaseURL:     strings.TrimSpace(v.GetString("DATABASE_URL")),
		MongoURI:        strings.TrimSpace(v.GetString("MONGO_URI")),
		MongoDB:         strings.TrimSpace(v.GetString("MONGO_DB")),
		RedisAddr:       strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		SummaryCacheTTL: time.Duration(cacheTTL) * time.Second,
		JWTSecret:       strings.TrimSpace(v.GetString("JWT_SECRET")),
		TokenTTL:        time.Duration(tokenTTL) * time.Hour,
		GoogleAudiences: audiences,
		Timezone:        strings.TrimSpace(v.GetString("APP_TIMEZONE")),
		PhoneRegion:     strings.ToUpper(strings.TrimSpace(v.GetString("PHONE_REGION"))),
		LogLevel:        v.GetString("LOG_LEVEL"),
	}
	if cfg.StoreDriver == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.StoreDriver = DriverPostgres
		case cfg.MongoURI != "":
			cfg.StoreDriver = DriverMongo
		default:
			cfg.StoreDriver = DriverMemory
		}
	}
	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
