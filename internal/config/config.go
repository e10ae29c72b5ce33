package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	HTTPAddr string
	GRPCAddr string
	AppEnv   string

	JWT JWTConfig

	HeartbeatInterval time.Duration
	InactivityTimeout time.Duration
	ReaperInterval    time.Duration
	QueueGCInterval   time.Duration
	OfflineQueueCap   int

	RedisAddr         string
	RedisPass         string
	SubscriptionStore string
	RateLimitPerMin   int

	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	SMTP     SMTPConfig
	SMS      SMSConfig
	Firebase FirebaseConfig

	FallbackRatePerSec float64
	TemplateDir        string
}

type JWTConfig struct {
	Secret   string
	PubPath  string
	Issuer   string
	Audience string
}

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
}

func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.User != "" }

type SMSConfig struct {
	APIURL   string
	APIKey   string
	SenderID string
}

func (c SMSConfig) Enabled() bool { return c.APIURL != "" }

type FirebaseConfig struct {
	CredentialsFile string
}

func (c FirebaseConfig) Enabled() bool { return c.CredentialsFile != "" }

// Load reads the service configuration from the environment. A .env file in the
// working directory is honoured when present.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Notification: No .env file found, relying on system env vars")
	}
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":8081"),
		AppEnv:   getEnv("APP_ENV", "production"),

		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", ""),
			Issuer:   getEnv("JWT_ISSUER", ""),
			Audience: getEnv("JWT_AUDIENCE", ""),
		},

		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		InactivityTimeout: getEnvAsDuration("INACTIVITY_TIMEOUT", 5*time.Minute),
		ReaperInterval:    getEnvAsDuration("REAPER_INTERVAL", time.Minute),
		QueueGCInterval:   getEnvAsDuration("QUEUE_GC_INTERVAL", time.Hour),
		OfflineQueueCap:   getEnvAsInt("OFFLINE_QUEUE_CAP", 100),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPass:         getEnv("REDIS_PASS", ""),
		SubscriptionStore: getEnv("SUBSCRIPTION_STORE", "memory"),
		RateLimitPerMin:   getEnvAsInt("RATE_LIMIT_PER_MIN", 120),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers: parseCSVEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "notification-events"),

		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", ""),
			Port: getEnv("SMTP_PORT", "465"),
			User: getEnv("SMTP_USER", ""),
			Pass: getEnv("SMTP_PASS", ""),
		},
		SMS: SMSConfig{
			APIURL:   getEnv("SMS_API_URL", ""),
			APIKey:   getEnv("SMS_API_KEY", ""),
			SenderID: getEnv("SMS_SENDER_ID", ""),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},

		FallbackRatePerSec: getEnvAsFloat("FALLBACK_RATE_PER_SEC", 20),
		TemplateDir:        getEnv("TEMPLATE_DIR", "./templates"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: invalid int for %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: invalid float for %s=%q, using %v", key, v, fallback)
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("config: invalid duration for %s=%q, using %s", key, v, fallback)
	}
	return fallback
}

func parseCSVEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
