package main

import (
	"fmt"
	"os"

	"opencart-backend/database"
)

type Config struct {
	Port              string
	Env               string
	Postgres          database.Config
	ProductServiceURL string
	RedisAddr         string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8083"),
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
		ProductServiceURL: getEnv("PRODUCT_SERVICE_URL", "http://product-service:8082"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
	}

	if cfg.Postgres.User == "" || cfg.Postgres.Password == "" || cfg.Postgres.DBName == "" || cfg.Postgres.Host == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
