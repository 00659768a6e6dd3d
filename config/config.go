package config

import (
	"fmt"
	"os"
	"strconv"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config menampung seluruh konfigurasi runtime dari environment.
type Config struct {
	Port string

	MidtransServerKey string
	MidtransClientKey string
	MidtransProd      bool
	WebhookURL        string

	FCMServerKey string // kosong = push dinonaktifkan

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers string // comma separated, kosong = disabled
	KafkaTopic   string

	// Parameter pricing policy (lihat services.PricingPolicy)
	PricingFixedFee int64
	PricingFeePct   float64
	PricingTaxOnFee float64
}

func Load() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		MidtransServerKey: os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey: os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransProd:      os.Getenv("MIDTRANS_ENV") == "production",
		WebhookURL:        os.Getenv("MIDTRANS_WEBHOOK_URL"),
		FCMServerKey:      os.Getenv("FCM_SERVER_KEY"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:        getenv("KAFKA_TOPIC", "order-events"),
		PricingFixedFee:   getenvInt64("PRICING_FIXED_FEE", 500),
		PricingFeePct:     getenvFloat("PRICING_FEE_PCT", 0.7),
		PricingTaxOnFee:   getenvFloat("PRICING_TAX_ON_FEE_PCT", 11),
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.RedisDB = n
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// InitDB membuka koneksi database. MySQL di production, sqlite file untuk
// development lokal ketika DB_HOST tidak di-set.
func InitDB() (*gorm.DB, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return gorm.Open(sqlite.Open(getenv("DB_FILE", "kantinku.db")), &gorm.Config{})
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		host,
		getenv("DB_PORT", "3306"),
		getenv("DB_NAME", "kantinku"),
	)
	return gorm.Open(mysql.Open(dsn), &gorm.Config{})
}
