package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only meant for local runs; main logs a warning when it is in use.
const DefaultJWTSecret = "please_change_this_in_production"

type Config struct {
	ServiceName string

	ServerPort  int
	CORSOrigins []string

	JWTSecret []byte
	TokenTTL  time.Duration

	AdminUsername     string
	AdminPasswordHash string
	AuthFile          string

	StorageDriver string
	DataFile      string
	BoltPath      string
	DatabaseURL   string

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LoginRateLimit  int
	LoginRateWindow time.Duration

	LogLevel string
	LogFile  string

	BcryptCost int
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not loaded: %v, using system environment", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "catalog"),

		ServerPort:  EnvIntDefault("SERVER_PORT", 5000),
		CORSOrigins: CSVDefault(os.Getenv("CORS_ORIGIN"), []string{"*"}),

		JWTSecret: []byte(EnvDefault("JWT_SECRET", DefaultJWTSecret)),
		TokenTTL:  EnvDurationDefault("TOKEN_TTL", 12*time.Hour),

		AdminUsername:     os.Getenv("ADMIN_USERNAME"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AuthFile:          EnvDefault("AUTH_FILE", "auth.json"),

		StorageDriver: strings.ToLower(EnvDefault("STORAGE_DRIVER", "json")),
		DataFile:      EnvDefault("DATA_FILE", "products.json"),
		BoltPath:      EnvDefault("BOLT_PATH", "products.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "product_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         EnvIntDefault("REDIS_DB", 0),
		LoginRateLimit:  EnvIntDefault("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: EnvDurationDefault("LOGIN_RATE_WINDOW", time.Minute),

		LogLevel: EnvDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		BcryptCost: EnvIntDefault("BCRYPT_COST", 10),
	}
}

func (c Config) UsesDefaultSecret() bool {
	return string(c.JWTSecret) == DefaultJWTSecret
}

// NeedsDatabaseURL reports whether the storage driver is SQL backed.
func (c Config) NeedsDatabaseURL() bool {
	return c.StorageDriver == "sqlite" || c.StorageDriver == "postgres"
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func CSVDefault(v string, def []string) []string {
	if out := CSV(v); len(out) > 0 {
		return out
	}
	return def
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
