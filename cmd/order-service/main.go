package main

import (
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"opencart-backend/common/logger"
	"opencart-backend/database"
	"opencart-backend/orders/controllers"
	"opencart-backend/orders/models"
	"opencart-backend/orders/repository"
	"opencart-backend/orders/routes"
	"opencart-backend/orders/services"
	paymentrepo "opencart-backend/payments/repository"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("[OrderService] Failed to load config: ", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("[OrderService] Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.Postgres)
	if err != nil {
		zlog.Fatal("Failed to connect to database: " + err.Error())
	}
	defer database.Close(db)

	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		zlog.Fatal("Migration failed: " + err.Error())
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := paymentrepo.NewGormPaymentRepository(db)
	catalog := services.NewProductClient(cfg.ProductServiceURL, cache, zlog)
	orderService := services.NewOrderService(orderRepo, catalog, paymentRepo, zlog)
	orderController := controllers.NewOrderController(orderService)

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(zlog))
	routes.RegisterOrderRoutes(r, orderController)

	zlog.Info("Order service running on port " + cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed: " + err.Error())
	}
}
