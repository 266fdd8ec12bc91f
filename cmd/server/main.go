package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"kamati-backend/internal/database"
	"kamati-backend/internal/handlers"
	customMiddleware "kamati-backend/internal/middleware"
	"kamati-backend/internal/ratings"
	"kamati-backend/internal/repository"
	"kamati-backend/internal/slack"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env (ignore error in production — env vars set directly)
	_ = godotenv.Load()

	// Required env vars
	mongoURI := getEnv("MONGODB_URI", "")
	dbName := getEnv("DB_NAME", "kamati")
	jwtSecret := getEnv("JWT_SECRET", "")
	port := getEnv("PORT", "4000")
	adminEmails := splitList(getEnv("ADMIN_EMAILS", ""))

	if mongoURI == "" {
		log.Fatal("❌ MONGODB_URI is required")
	}
	if jwtSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}
	if len(adminEmails) == 0 {
		log.Println("⚠️  ADMIN_EMAILS is empty — admin login is disabled")
	}

	// Connect to MongoDB
	if err := database.Connect(mongoURI, dbName); err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}

	// Initialize repositories
	noteRepo := repository.NewNoteRepo()
	ratingRepo := repository.NewRatingRepo()
	feedbackRepo := repository.NewFeedbackRepo()
	tokenRepo := repository.NewLoginTokenRepo()

	// Ensure indexes
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := noteRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create note indexes: %v", err)
	}
	if err := ratingRepo.EnsureIndexes(ctx); err != nil {
		// The partial unique index is what enforces one-rating-per-user;
		// running without it silently admits duplicates.
		log.Fatalf("❌ Failed to create rating indexes: %v", err)
	}
	if err := feedbackRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create feedback indexes: %v", err)
	}
	if err := tokenRepo.EnsureIndexes(ctx); err != nil {
		log.Printf("⚠️  Warning: failed to create login token indexes: %v", err)
	}

	// Initialize Slack notifier (mock)
	notifier := slack.NewMockSlack()

	// Core aggregator + handlers
	aggregator := ratings.NewAggregator(noteRepo, ratingRepo)
	notesHandler := handlers.NewNotesHandler(aggregator, noteRepo)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackRepo, notifier)
	authHandler := handlers.NewAuthHandler(tokenRepo, adminEmails, jwtSecret)
	adminHandler := handlers.NewAdminHandler(noteRepo, ratingRepo)

	// Setup chi router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"kamati-backend"}`))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"KaMaTi backend running"}`))
	})

	// Admin login (magic link)
	r.Post("/auth/request", authHandler.RequestLogin)
	r.Get("/auth/verify", authHandler.VerifyToken)

	// Public API consumed by the SPA
	r.Route("/api", func(r chi.Router) {
		r.Post("/rate-note", notesHandler.RateNote)
		r.Get("/notes", notesHandler.ListNotes)
		r.Post("/feedback", feedbackHandler.SubmitFeedback)

		// Catalog management (JWT required)
		r.Route("/admin", func(r chi.Router) {
			r.Use(customMiddleware.JWTAuth(jwtSecret))

			r.Post("/notes", adminHandler.CreateNote)
			r.Post("/notes/{id}/recompute", adminHandler.RecomputeAggregate)
		})
	})

	// Start server
	log.Printf("🚀 KaMaTi backend starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
