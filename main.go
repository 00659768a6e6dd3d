package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kantinku/kantinku-api/broker"
	"github.com/kantinku/kantinku-api/cache"
	"github.com/kantinku/kantinku-api/config"
	"github.com/kantinku/kantinku-api/database"
	"github.com/kantinku/kantinku-api/router"
	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

func main() {
	// .env opsional; di production config datang dari environment.
	_ = godotenv.Load()
	utils.InitLogger()

	cfg := config.Load()

	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("koneksi database gagal: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("migrasi database gagal: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis dan Kafka opsional: tanpa keduanya koordinator tetap jalan,
	// hanya kehilangan fast-path dedup dan event stream.
	var orderCache *cache.Cache
	if cfg.RedisAddr != "" {
		orderCache, err = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			utils.ErrorLogger.Printf("redis tidak tersedia, lanjut tanpa cache: %v", err)
			orderCache = nil
		}
	}

	var producer *broker.Producer
	if cfg.KafkaBrokers != "" {
		producer = broker.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic)
		defer producer.Close()
	}

	st := store.NewGormStore(db)
	hub := ws.NewHub()

	var push services.PushSender
	if cfg.FCMServerKey != "" {
		push = services.NewFCMService(cfg.FCMServerKey)
	}
	notifier := services.NewNotificationDispatcher(hub, push, producer, st)

	gateway := services.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransProd)
	pricing := services.PricingPolicy{
		FixedFee:    cfg.PricingFixedFee,
		FeePct:      cfg.PricingFeePct,
		TaxOnFeePct: cfg.PricingTaxOnFee,
	}

	orders := services.NewOrderService(st, notifier, orderCache)
	confirmation := services.NewConfirmationAggregator(st, gateway, pricing, notifier, orderCache)
	reconciler := services.NewPaymentReconciler(st, gateway, notifier, orderCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	services.NewPaymentMonitor(st, gateway, reconciler, 5*time.Minute).Start(ctx)

	r := router.SetupRouter(ctx, router.Deps{
		DB:           db,
		Store:        st,
		Hub:          hub,
		Notifier:     notifier,
		Orders:       orders,
		Confirmation: confirmation,
		Reconciler:   reconciler,
	})

	utils.InfoLogger.Printf("kantinku-api listen di port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}
