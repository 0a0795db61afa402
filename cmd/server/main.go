package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shop-flow/internal/api"
	"shop-flow/internal/config"
	"shop-flow/internal/events"
	"shop-flow/internal/model"
	"shop-flow/internal/repository"
	"shop-flow/internal/s3"
	"shop-flow/internal/service"
	"shop-flow/internal/token"
	"shop-flow/internal/tracing"
	_ "shop-flow/migrations"
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		fmt.Println("No .env.dev file found, reading from environment variables")
	}

	api.SetupGlobalLogger("shop-flow")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		handleMigrations(cfg)
		return
	}

	shutdownTracer, err := tracing.InitTracerProvider("shop-flow")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	db := connectDB(cfg)
	defer db.Close()

	eventPublisher, err := events.NewNatsPublisher(cfg.NatsURL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	log.Println("Successfully connected to NATS.")

	filePresigner, err := s3.NewFilePresigner(context.Background(), cfg.S3)
	if err != nil {
		log.Fatalf("Failed to initialize S3 presigner: %v", err)
	}

	codec := token.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ResetTokenTTL)

	userRepo := repository.NewPostgresUserRepository(db)
	credRepo := repository.NewPostgresCredentialRepository(db)
	productRepo := repository.NewPostgresProductRepository(db)
	reviewRepo := repository.NewPostgresReviewRepository(db)
	orderRepo := repository.NewPostgresOrderRepository(db)
	notificationRepo := repository.NewPostgresNotificationRepository(db)

	authService := service.NewAuthService(userRepo, credRepo, codec, eventPublisher, cfg.BaseURL, cfg.BcryptCost)
	productService := service.NewProductService(productRepo, reviewRepo)
	orderService := service.NewOrderService(orderRepo, productRepo, eventPublisher)
	userService := service.NewUserService(userRepo, notificationRepo)

	gate := api.NewAuthGate(codec, userRepo, cfg.AdminEmail)

	authHandler := api.NewAuthHandler(authService, cfg.SecureCookies)
	productHandler := api.NewProductHandler(productService, filePresigner)
	orderHandler := api.NewOrderHandler(orderService, cfg.AdminEmail)
	userHandler := api.NewUserHandler(userService)

	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler})
	app.Use(otelfiber.Middleware())
	app.Use(api.PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "shop-flow"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	apiRoutes := app.Group("/api")

	userRoutes := apiRoutes.Group("/users")
	userRoutes.Post("/signup", authHandler.Signup)
	userRoutes.Post("/signin", authHandler.Login)
	userRoutes.Post("/logout", authHandler.Logout)
	userRoutes.Post("/refresh-token", authHandler.Refresh)
	userRoutes.Post("/forgot-password", authHandler.ForgotPassword)
	userRoutes.Patch("/reset-password/:token", authHandler.ResetPassword)

	userRoutes.Use(gate.Authenticate())
	userRoutes.Get("/get-me", authHandler.GetMe)
	userRoutes.Patch("/update-me-password", authHandler.UpdatePassword)
	userRoutes.Delete("/delete-me", authHandler.DeleteMe)
	userRoutes.Post("/device-token", userHandler.RegisterDeviceToken)
	userRoutes.Get("/", gate.RestrictTo(model.RoleAdmin), userHandler.List)

	productRoutes := apiRoutes.Group("/products")
	productRoutes.Get("/", productHandler.List)
	productRoutes.Get("/:id", productHandler.Get)
	productRoutes.Get("/:id/reviews", productHandler.ListReviews)
	productRoutes.Post("/:id/reviews", gate.Authenticate(), productHandler.AddReview)
	productRoutes.Post("/", gate.Authenticate(), gate.RestrictTo(model.RoleAdmin), productHandler.Create)
	productRoutes.Patch("/:id", gate.Authenticate(), gate.RestrictTo(model.RoleAdmin), productHandler.Update)
	productRoutes.Delete("/:id", gate.Authenticate(), gate.RestrictTo(model.RoleAdmin), productHandler.Delete)

	apiRoutes.Post("/uploads/product-image",
		gate.Authenticate(), gate.RestrictTo(model.RoleAdmin), productHandler.ImageUploadURL)

	orderRoutes := apiRoutes.Group("/orders")
	orderRoutes.Use(gate.Authenticate())
	orderRoutes.Post("/", orderHandler.Create)
	orderRoutes.Get("/", orderHandler.List)
	orderRoutes.Get("/:id", orderHandler.Get)

	notificationRoutes := apiRoutes.Group("/notifications")
	notificationRoutes.Use(gate.Authenticate())
	notificationRoutes.Get("/", userHandler.ListNotifications)
	notificationRoutes.Patch("/:id/read", userHandler.MarkNotificationRead)

	log.Printf("Listening shop-flow on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

func connectDB(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Successfully connected to the database.")
	return db
}

func handleMigrations(cfg *config.Config) {
	fmt.Println("Running database migrations...")

	db, err := sql.Open("pgx", cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect to database for migration: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set goose dialect: %v", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("goose: failed to run migrations: %v", err)
	}

	fmt.Println("Migrations applied successfully!")
}
