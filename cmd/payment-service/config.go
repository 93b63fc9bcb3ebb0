package main

import (
	"fmt"
	"os"
	"time"

	"opencart-backend/database"
	"opencart-backend/payments/services"
)

type Config struct {
	Port     string
	Env      string
	Postgres database.Config
	Mpesa    services.MpesaConfig

	KafkaBrokers string
	KafkaTopic   string

	ReconcileWindow   time.Duration
	ReconcileInterval time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("APP_ENV", "development"),
		Postgres: database.Config{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   os.Getenv("POSTGRES_DB"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			TimeZone: getEnv("POSTGRES_TIMEZONE", "Africa/Nairobi"),
		},
		Mpesa: services.MpesaConfig{
			BaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			Shortcode:      os.Getenv("MPESA_SHORTCODE"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		},
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("PAYMENT_EVENTS_TOPIC", "payment.events"),
		ReconcileWindow:   getDurationEnv("PAYMENT_PENDING_WINDOW", 3*time.Minute),
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", time.Minute),
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DBName == "" || cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" ||
		cfg.Mpesa.Shortcode == "" || cfg.Mpesa.Passkey == "" || cfg.Mpesa.CallbackURL == "" {
		return nil, fmt.Errorf("mpesa config incomplete")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
