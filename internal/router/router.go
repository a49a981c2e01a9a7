package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anonto42/safecircle/backend/internal/handlers"
	"github.com/anonto42/safecircle/backend/internal/metrics"
	"github.com/anonto42/safecircle/backend/internal/middleware"
	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/anonto42/safecircle/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the routes are built from
type Deps struct {
	Postgres  *gorm.DB
	Mongo     *mongo.Database
	Gateway   services.PushGateway
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	JWTSecret string
	JWTTTL    time.Duration
}

// SetupRoutes prepares the stores and configures all application routes
func SetupRoutes(ctx context.Context, e *echo.Echo, d Deps) error {
	if err := d.Postgres.WithContext(ctx).AutoMigrate(&models.Notification{}); err != nil {
		return fmt.Errorf("auto migrate notifications: %w", err)
	}
	d.Logger.Info("PostgreSQL auto-migrations completed")

	// --- Initialize Repositories ---
	userRepo := repositories.NewMongoUserRepository(d.Mongo)
	contactRepo := repositories.NewMongoContactRepository(d.Mongo)
	notificationRepo := repositories.NewPostgresNotificationRepository(d.Postgres)

	if err := userRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure user indexes: %w", err)
	}
	if err := contactRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure contact indexes: %w", err)
	}
	d.Logger.Info("MongoDB indexes ensured")

	panicService := services.NewPanicService(contactRepo, userRepo, d.Gateway, notificationRepo, d.Metrics, d.Logger)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "safecircle api"})
	})
	RegisterDocsRoutes(e)

	// --- Unprotected routes ---
	public := e.Group("/api/v1")
	authHandler := handlers.NewAuthHandler(userRepo, d.JWTSecret, d.JWTTTL)
	authHandler.RegisterAuthRoutes(public.Group("/auth"))
	userHandler := handlers.NewUserHandler(userRepo, notificationRepo, d.Logger)
	userHandler.RegisterPublicRoutes(public)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(d.JWTSecret))

	userHandler.RegisterUserRoutes(api, middleware.RequireRole(models.RoleAdmin))

	contactHandler := handlers.NewContactHandler(contactRepo, userRepo)
	contactHandler.RegisterContactRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	panicHandler := handlers.NewPanicHandler(panicService, d.Logger)
	panicHandler.RegisterPanicRoutes(api)

	d.Logger.Info("all routes configured")
	return nil
}
