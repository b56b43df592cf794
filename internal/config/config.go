package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv          string
	AppPort         string
	AppBaseURL      string
	CORSOrigins     string
	DBDriver        string
	DBDSN           string
	JWTSecret       string
	JWTExpiresMin   int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	// kosong = login Google terbuka untuk email apa saja yang sudah terdaftar
	StaffEmailDomain string

	Redis     RedisConfig
	Woo       WooConfig
	Sync      SyncConfig
	Log       LogConfig
	RateLimit RateLimitConfig

	OTLPEndpoint string
	ViewCacheTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WooConfig boleh kosong; client WooCommerce yang menolak saat dibuat.
type WooConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
}

type SyncConfig struct {
	MissingThreshold  int
	LowStockThreshold int
	SearchPageSize    int
}

type LogConfig struct {
	Level    string
	Encoding string
}

type RateLimitConfig struct {
	SearchQPS float64
	SyncQPS   float64
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

func Load() Config {
	v := newViper()

	return Config{
		AppEnv:           v.GetString("APP_ENV"),
		AppPort:          v.GetString("APP_PORT"),
		AppBaseURL:       v.GetString("APP_BASE_URL"),
		CORSOrigins:      v.GetString("CORS_ORIGINS"),
		DBDriver:         strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:            must(v, "DB_DSN"),
		JWTSecret:        must(v, "JWT_SECRET"),
		JWTExpiresMin:    v.GetInt("JWT_EXPIRES_MIN"),
		GoogleClientID:   v.GetString("GOOGLE_CLIENT_ID"),
		GoogleSecret:     v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirect:   v.GetString("GOOGLE_REDIRECT_URL"),
		FrontendBaseURL:  v.GetString("FRONTEND_BASE_URL"),
		StaffEmailDomain: strings.ToLower(strings.TrimSpace(v.GetString("STAFF_EMAIL_DOMAIN"))),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Woo: WooConfig{
			BaseURL:        strings.TrimRight(v.GetString("WOO_BASE_URL"), "/"),
			ConsumerKey:    v.GetString("WOO_CONSUMER_KEY"),
			ConsumerSecret: v.GetString("WOO_CONSUMER_SECRET"),
			Timeout:        v.GetDuration("WOO_TIMEOUT"),
		},
		Sync: SyncConfig{
			MissingThreshold:  v.GetInt("SYNC_MISSING_THRESHOLD"),
			LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
			SearchPageSize:    v.GetInt("SEARCH_PAGE_SIZE"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		RateLimit: RateLimitConfig{
			SearchQPS: v.GetFloat64("RATE_LIMIT_SEARCH_QPS"),
			SyncQPS:   v.GetFloat64("RATE_LIMIT_SYNC_QPS"),
		},
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ViewCacheTTL: v.GetDuration("VIEW_CACHE_TTL"),
	}
}

// newViper: config.yaml (opsional) di working dir, env selalu menang.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "production")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("JWT_EXPIRES_MIN", 10080)
	v.SetDefault("FRONTEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("WOO_TIMEOUT", "60s")
	v.SetDefault("SYNC_MISSING_THRESHOLD", 500)
	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("SEARCH_PAGE_SIZE", 20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("RATE_LIMIT_SEARCH_QPS", 10)
	v.SetDefault("RATE_LIMIT_SYNC_QPS", 1)
	v.SetDefault("VIEW_CACHE_TTL", "5m")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("invalid config.yaml: " + err.Error())
		}
	}
	return v
}

func must(v *viper.Viper, k string) string {
	s := v.GetString(k)
	if s == "" {
		panic("missing env: " + k)
	}
	return s
}
