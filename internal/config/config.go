package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultPaymentURL    = "https://sandbox.sslcommerz.com/gwprocess/v4/api.php"
	defaultValidationURL = "https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php"
)

type Config struct {
	AppEnv      string
	AppPort     string `validate:"required"`
	FrontendURL string `validate:"omitempty,url"`
	Timezone    string `validate:"required"`
	JWTSecret   string

	DBHost     string `validate:"required"`
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	SSLCommerz SSLCommerzConfig
	SMTP       SMTPConfig
	AMQP       AMQPConfig
}

// SSLCommerzConfig holds the store credentials and gateway endpoints.
type SSLCommerzConfig struct {
	StoreID         string        `validate:"required"`
	StorePassword   string        `validate:"required"`
	PaymentURL      string        `validate:"required,url"`
	ValidationURL   string        `validate:"required,url"`
	InitiateTimeout time.Duration `validate:"gt=0"`
	ValidateTimeout time.Duration `validate:"gt=0"`
	VerifyRetries   int           `validate:"min=0,max=5"`
	RetryBackoff    time.Duration `validate:"min=0"`
}

type SMTPConfig struct {
	Host     string
	Port     int `validate:"omitempty,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"omitempty,email"`
}

type AMQPConfig struct {
	URL   string
	Queue string
}

// Load reads the environment (and an optional .env file) into a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:      os.Getenv("APP_ENV"),
		AppPort:     getEnv("APP_PORT", "8080"),
		FrontendURL: os.Getenv("FRONTEND_URL"),
		Timezone:    getEnv("APP_TIMEZONE", "Asia/Dhaka"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),

		SSLCommerz: SSLCommerzConfig{
			StoreID:         os.Getenv("SSLCOMMERZ_STORE_ID"),
			StorePassword:   os.Getenv("SSLCOMMERZ_STORE_PASSWORD"),
			PaymentURL:      getEnv("SSLCOMMERZ_PAYMENT_URL", defaultPaymentURL),
			ValidationURL:   getEnv("SSLCOMMERZ_VALIDATION_URL", defaultValidationURL),
			InitiateTimeout: getDuration("SSLCOMMERZ_INITIATE_TIMEOUT", 15*time.Second),
			ValidateTimeout: getDuration("SSLCOMMERZ_VALIDATE_TIMEOUT", 10*time.Second),
			VerifyRetries:   getInt("SSLCOMMERZ_VERIFY_RETRIES", 2),
			RetryBackoff:    getDuration("SSLCOMMERZ_RETRY_BACKOFF", 200*time.Millisecond),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		AMQP: AMQPConfig{
			URL:   os.Getenv("AMQP_URL"),
			Queue: getEnv("AMQP_ORDER_QUEUE", "order_events"),
		},
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadConfig is Load for main: it exits the process on a bad configuration.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Environment variables not loaded properly: %v", err)
	}
	return cfg
}

// Location resolves the configured reporting timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
