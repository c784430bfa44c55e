package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/wildatlas/backend/internal/config"
	"github.com/wildatlas/backend/internal/database"
	"github.com/wildatlas/backend/internal/handlers"
	"github.com/wildatlas/backend/internal/middleware"
	"github.com/wildatlas/backend/internal/services"
	"github.com/wildatlas/backend/internal/storage"
	"github.com/wildatlas/backend/pkg/logger"
	"github.com/wildatlas/backend/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on process environment")
	}

	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigureResponses(cfg.Server.Production)

	db, err := database.Connect(cfg.DB, cfg.Admin)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	mediaClient, err := storage.NewMediaClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("media storage initialization failed: %v", err)
	}
	if err := mediaClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring media bucket: %v", err)
	}

	auditService := services.NewAuditService(db)

	authHandler := handlers.NewAuthHandler(db, auditService)
	animalsHandler := handlers.NewAnimalsHandler(db, mediaClient, auditService, cfg.Media.BaseURL)

	authMiddleware := middleware.NewAuthMiddleware(db, cfg.Admin)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.Server.Production}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", handlers.GetVersion)

	userRoutes := api.Group("/users")
	userRoutes.Post("/register", authHandler.Register)
	userRoutes.Post("/login", authHandler.Login)
	userRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	animalRoutes := api.Group("/animals")
	animalRoutes.Get("/", animalsHandler.List)
	animalRoutes.Get("/:id", animalsHandler.Get)
	animalRoutes.Post("/", authMiddleware.RequireAdmin, animalsHandler.Create)
	animalRoutes.Put("/:id", authMiddleware.RequireAdmin, animalsHandler.Update)
	animalRoutes.Delete("/:id", authMiddleware.RequireAdmin, animalsHandler.Delete)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			auditService.Close()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
