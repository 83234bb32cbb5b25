package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	Clerk       ClerkConfig
	Stripe      StripeConfig
	FCM         FCMConfig
	Metrics     MetricsConfig
	Workers     WorkerConfig
}

type ClerkConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string
}

type StripeConfig struct {
	SecretKey     string `validate:"required"`
	WebhookSecret string
	Currency      string `validate:"required,len=3"`
}

type FCMConfig struct {
	// CredentialsJSON is a base64 encoded service account, preferred over the file.
	CredentialsJSON string
	CredentialsFile string
}

type MetricsConfig struct {
	User        string
	Pass        string
	PprofSecret string
}

type WorkerConfig struct {
	ReminderInterval time.Duration `validate:"gt=0"`
	SweepInterval    time.Duration `validate:"gt=0"`
}

// Get returns the value of the requested environment variable or the fallback when empty.
func Get(name string, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(name string, fallback time.Duration) time.Duration {
	raw := Get(name, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using %s", name, raw, fallback)
		return fallback
	}
	return d
}

// Load reads .env (when present) and the process environment into a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := Config{
		Port:        Get("PORT", "3333"),
		DatabaseURL: Get("DATABASE_URL", ""),
		Clerk: ClerkConfig{
			SecretKey:     Get("CLERK_SECRET_KEY", ""),
			WebhookSecret: Get("CLERK_WEBHOOK_SECRET", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     Get("STRIPE_SECRET_KEY", ""),
			WebhookSecret: Get("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      Get("STRIPE_CURRENCY", "jpy"),
		},
		FCM: FCMConfig{
			CredentialsJSON: Get("FCM_SERVICE_ACCOUNT_JSON", ""),
			CredentialsFile: Get("FCM_CREDENTIALS_FILE", "./serviceAccountKey.json"),
		},
		Metrics: MetricsConfig{
			User:        Get("METRICS_USER", ""),
			Pass:        Get("METRICS_PASS", ""),
			PprofSecret: Get("PPROF_SECRET", ""),
		},
		Workers: WorkerConfig{
			ReminderInterval: getDuration("REMINDER_INTERVAL", time.Minute),
			SweepInterval:    getDuration("SWEEP_INTERVAL", 15*time.Minute),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
