package main

import (
	"log"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"opencart-backend/common/logger"
	"opencart-backend/database"
	"opencart-backend/products/controllers"
	"opencart-backend/products/models"
	"opencart-backend/products/repository"
	"opencart-backend/products/routes"
	"opencart-backend/products/services"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("[ProductService] Failed to load config: ", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal("[ProductService] Failed to initialize logger: ", err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.Postgres)
	if err != nil {
		zlog.Fatal("Failed to connect to database: " + err.Error())
	}
	defer database.Close(db)

	if err := db.AutoMigrate(&models.Product{}); err != nil {
		zlog.Fatal("Migration failed: " + err.Error())
	}

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	productRepo := repository.NewGormProductRepository(db)
	productService := services.NewProductService(productRepo, cache, zlog)
	productController := controllers.NewProductController(productService)

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(zlog))
	routes.RegisterProductRoutes(r, productController)

	zlog.Info("Product service running on port " + cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server failed: " + err.Error())
	}
}
