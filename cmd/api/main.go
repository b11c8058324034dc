package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"roulette-miniapp-backend/internal/config"
	"roulette-miniapp-backend/internal/handlers"
	"roulette-miniapp-backend/internal/middleware"
	"roulette-miniapp-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	gameEngine, err := services.NewGameEngine(redisService, cfg)
	if err != nil {
		log.Fatalf("Failed to create game engine: %v", err)
	}

	wsHandler := handlers.NewWebSocketHandler(gameEngine, redisService)
	gameEngine.SetBroadcaster(wsHandler)

	// The single round driver. If another instance already drives
	// rounds, the loop returns ErrDuplicateDriver and this process
	// must exit rather than contend.
	go func() {
		if err := gameEngine.RunRoundLoop(context.Background()); err != nil {
			log.Fatalf("Round loop exited: %v", err)
		}
	}()

	authHandler := handlers.NewAuthHandler(redisService, jwtService)
	userHandler := handlers.NewUserHandler(redisService)
	gameHandler := handlers.NewGameHandler(gameEngine, redisService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/login", authHandler.Login)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		roulette := protected.Group("/roulette")
		{
			roulette.GET("/state", gameHandler.GetRoundState)
			roulette.GET("/wheel", gameHandler.GetWheelInfo)
			roulette.GET("/history", gameHandler.GetHistory)
		}

		protected.GET("/balance", gameHandler.GetBalance)
		protected.GET("/ledger", gameHandler.GetLedger)
		protected.GET("/payouts", gameHandler.GetPayouts)
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
