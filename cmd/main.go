package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"cart-service/internal/api"
	"cart-service/internal/config"
	"cart-service/internal/events"
	"cart-service/internal/repository"
	"cart-service/internal/service"
	"cart-service/internal/session"
	"cart-service/internal/sharding"
	"cart-service/migrations"
)

func connectDBEnv(host, port, user, pass, dbname string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)

	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				log.Printf("✅ Connected to DB %s", dbname)
				return db, nil
			}
		}
		log.Printf("❌ Retry %d: Failed to connect to DB %s (%s:%s): %v", i+1, dbname, host, port, err)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %v", dbname, host, port, err)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	dbShards := make([]*sql.DB, 0, cfg.ShardCount)
	for i := 1; i <= cfg.ShardCount; i++ {
		prefix := fmt.Sprintf("DB%d_", i)
		db, err := connectDBEnv(
			os.Getenv(prefix+"HOST"), os.Getenv(prefix+"PORT"),
			os.Getenv(prefix+"USER"), os.Getenv(prefix+"PASS"), os.Getenv(prefix+"NAME"))
		if err != nil {
			panic(err)
		}
		dbShards = append(dbShards, db)
	}

	err := migrations.AutoMigrateShoppingCart(cfg.Table, 3, dbShards...)
	if err != nil {
		log.Fatalf("Failed to migrate %s table: %v", cfg.Table, err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)

	router := sharding.NewShardRouter(cfg.ShardCount)

	cartRepo := repository.NewCartRepository(dbShards, router, cfg.Table)
	sessions := session.NewRedisStore(rdb, 0)
	dispatcher := events.NewKafkaDispatcher(kafkaWriter)
	registry := service.NewModelRegistry()
	cart := service.NewCart(sessions, cartRepo, dispatcher, registry, cfg)
	cartHandler := api.NewCartHandler(cart)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(1),
				Burst:     3,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.Request().RemoteAddr, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	e.POST("/cart/items", cartHandler.AddItems)
	e.PUT("/cart/items/:rowId", cartHandler.UpdateItem)
	e.DELETE("/cart/items/:rowId", cartHandler.RemoveItem)
	e.GET("/cart/items/:rowId", cartHandler.GetItem)
	e.GET("/cart", cartHandler.GetCart)
	e.POST("/cart/costs", cartHandler.AddCost)
	e.DELETE("/cart", cartHandler.DestroyCart)

	persist := e.Group("")
	if cfg.JWTSecret != "" {
		persist.Use(echojwt.WithConfig(echojwt.Config{
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}
	persist.POST("/cart/store/:identifier", cartHandler.StoreCart)
	persist.POST("/cart/restore/:identifier", cartHandler.RestoreCart)
	persist.POST("/cart/merge/:identifier", cartHandler.MergeCart)
	persist.DELETE("/cart/stored/:identifier", cartHandler.DeleteStored)

	e.GET("/cart/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "cart-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
