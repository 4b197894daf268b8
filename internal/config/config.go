package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	HTTPAddr string
	// GRPCAddr is empty when the gRPC API is disabled.
	GRPCAddr        string
	CORSOrigins     []string
	RateLimit       time.Duration
	ShutdownTimeout time.Duration
}

type Log struct {
	Level  string
	Format string // json | console
}

type Ledger struct {
	Backend       string // memory | redis | pebble
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PebblePath    string
}

type Journal struct {
	PostgresURL string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Exchange struct {
	// Currencies is the allow-list of currency codes; empty accepts any
	// well-formed code.
	Currencies     []string
	ActorInboxSize int

	// PublishQueueSize bounds the trade batches waiting per market for the
	// publishers; PublishTimeout bounds one publish call.
	PublishQueueSize int
	PublishTimeout   time.Duration
}

type Config struct {
	Server   Server
	Log      Log
	Ledger   Ledger
	Journal  Journal
	Kafka    Kafka
	Exchange Exchange
}

const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
	LedgerPebble = "pebble"
)

func Default() Config {
	return Config{
		Server: Server{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Ledger: Ledger{
			Backend:    LedgerMemory,
			RedisAddr:  "localhost:6379",
			PebblePath: "data/ledger",
		},
		Kafka: Kafka{
			Topic: "trades",
		},
		Exchange: Exchange{
			ActorInboxSize:   256,
			PublishQueueSize: 1024,
			PublishTimeout:   2 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	if addr, ok := os.LookupEnv("GRPC_ADDR"); ok {
		cfg.Server.GRPCAddr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}
	if ms, ok := getMillis("RATE_LIMIT_MS"); ok {
		cfg.Server.RateLimit = ms
	}
	if ms, ok := getMillis("SHUTDOWN_TIMEOUT_MS"); ok {
		cfg.Server.ShutdownTimeout = ms
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Ledger.Backend = strings.ToLower(getEnv("LEDGER_BACKEND", cfg.Ledger.Backend))
	cfg.Ledger.RedisAddr = getEnv("REDIS_ADDR", cfg.Ledger.RedisAddr)
	cfg.Ledger.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Ledger.RedisPassword)
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.Ledger.RedisDB = n
		}
	}
	cfg.Ledger.PebblePath = getEnv("PEBBLE_PATH", cfg.Ledger.PebblePath)

	cfg.Journal.PostgresURL = getEnv("POSTGRES_URL", cfg.Journal.PostgresURL)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	if currencies := os.Getenv("CURRENCIES"); currencies != "" {
		cfg.Exchange.Currencies = splitList(currencies)
	}
	if size := os.Getenv("ACTOR_INBOX_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Exchange.ActorInboxSize = n
		}
	}
	if size := os.Getenv("PUBLISH_QUEUE_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n > 0 {
			cfg.Exchange.PublishQueueSize = n
		}
	}
	if ms, ok := getMillis("PUBLISH_TIMEOUT_MS"); ok && ms > 0 {
		cfg.Exchange.PublishTimeout = ms
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getMillis(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
