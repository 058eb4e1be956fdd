package main

import (
	"log"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/apikeys"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/auth"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/database"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/flows"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/health"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/projects"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/runs"
)

func main() {
	// Load .env if present; real environment variables win
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "forgeflow.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create the admin user with a bootstrap API key if no users exist yet
	if err := ensureAdminExists(db); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	r := gin.Default()
	r.Use(corsMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoint
	healthHandler := health.NewHandler(db)
	healthHandler.RegisterRoutes(r)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db)

		// /auth/me works with either credential
		api.GET("/auth/me", combinedAuth, authHandler.Me)

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(db)
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Projects, flows and runs (protected - accepts JWT or API key)
		protected := api.Group("", combinedAuth)
		projects.NewHandler(db).RegisterRoutes(protected)
		flows.NewHandler(db).RegisterRoutes(protected)
		runs.NewHandler(db).RegisterRoutes(protected)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting ForgeFlow server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// corsMiddleware builds the CORS policy from CORS_ORIGINS, a comma-separated
// origin list. The default is wide open, matching local development.
func corsMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowHeaders = append(config.AllowHeaders, "Authorization")

	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" || origins == "*" {
		config.AllowAllOrigins = true
		return cors.New(config)
	}

	for _, o := range strings.Split(origins, ",") {
		config.AllowOrigins = append(config.AllowOrigins, strings.TrimSpace(o))
	}
	return cors.New(config)
}

// ensureAdminExists creates a default admin user with a bootstrap API key if
// the users table is empty. The key plaintext is logged exactly once here and
// is not retrievable through any endpoint afterwards.
func ensureAdminExists(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Users already exist
	}

	password, err := apikeys.GenerateKey()
	if err != nil {
		return err
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	secret, err := apikeys.GenerateKey()
	if err != nil {
		return err
	}
	keyHash, err := apikeys.HashKey(secret)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@forgeflow.local",
		PasswordHash: hashedPassword,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&adminUser).Error; err != nil {
			return err
		}
		bootstrapKey := models.APIKey{
			UserID:    adminUser.ID,
			KeyHash:   keyHash,
			KeyPrefix: secret[:apikeys.KeyPrefixLength],
			Name:      "bootstrap admin key",
		}
		return tx.Create(&bootstrapKey).Error
	})
	if err != nil {
		return err
	}

	log.Printf("Created default admin user: %s", adminUser.Email)
	log.Printf("Bootstrap admin API key (shown only once): %s", secret)
	return nil
}
