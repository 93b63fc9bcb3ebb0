package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"opencart-backend/common/logger"
	"opencart-backend/database"
	orderrepo "opencart-backend/orders/repository"
	"opencart-backend/payments/controllers"
	"opencart-backend/payments/kafka"
	"opencart-backend/payments/models"
	"opencart-backend/payments/repository"
	"opencart-backend/payments/routes"
	"opencart-backend/payments/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("[PaymentService] Failed to load config: ", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("[PaymentService] Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.Postgres)
	if err != nil {
		zlog.Fatal("Failed to connect to database: " + err.Error())
	}
	defer database.Close(db)

	if err := db.AutoMigrate(&models.Payment{}); err != nil {
		zlog.Fatal("Migration failed: " + err.Error())
	}

	paymentRepo := repository.NewGormPaymentRepository(db)
	orderStore := orderrepo.NewGormOrderRepository(db)
	gateway := services.NewMpesaClient(cfg.Mpesa, zlog)

	var events services.EventPublisher
	if cfg.KafkaBrokers != "" {
		producer := kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaTopic, zlog)
		defer producer.Close()
		events = producer
	}

	paymentService := services.NewPaymentService(paymentRepo, orderStore, gateway, events, zlog)
	paymentController := controllers.NewPaymentController(paymentService, gateway, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reconciler := services.NewReconciler(paymentRepo, orderStore, cfg.ReconcileWindow, cfg.ReconcileInterval, zlog)
	go reconciler.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(zlog))
	routes.RegisterPaymentRoutes(r, paymentController)

	zlog.Info("Payment service running on port " + cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed: " + err.Error())
	}
}
