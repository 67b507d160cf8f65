package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gatdilshan/railway-safety-research/config"
	"github.com/gatdilshan/railway-safety-research/internal/arbiter"
	internalcache "github.com/gatdilshan/railway-safety-research/internal/cache"
	"github.com/gatdilshan/railway-safety-research/internal/catalog"
	"github.com/gatdilshan/railway-safety-research/internal/collision"
	"github.com/gatdilshan/railway-safety-research/internal/engine"
	"github.com/gatdilshan/railway-safety-research/internal/handler"
	"github.com/gatdilshan/railway-safety-research/internal/matcher"
	"github.com/gatdilshan/railway-safety-research/internal/matchstate"
	"github.com/gatdilshan/railway-safety-research/internal/middleware"
	"github.com/gatdilshan/railway-safety-research/internal/registry"
	"github.com/gatdilshan/railway-safety-research/internal/store/pgstore"
	"github.com/gatdilshan/railway-safety-research/internal/trip"
	"github.com/gatdilshan/railway-safety-research/pkg/cache"
	"github.com/gatdilshan/railway-safety-research/pkg/db"
)

func main() {
	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}
	defer pgPool.Close()
	log.Println("✓ PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ── Wire the core singletons ────────────────────────
	backing := pgstore.New(pgPool)
	trackCache := internalcache.New(redisClient)

	cat := catalog.New(backing).WithCache(trackCache)
	matchState := matchstate.New(backing)
	reg := registry.New(backing)
	arb := arbiter.New(backing)
	det := collision.New(arb, reg)
	m := matcher.New(cat, matchState, cfg.Matching.ThresholdMeters, cfg.Matching.RequiredConsecutive)
	tripCtl := trip.New(cat, reg, arb, det)

	eng := engine.New(cat, matchState, m, arb, det, reg, tripCtl).WithFeed(trackCache)

	if err := eng.Bootstrap(ctx); err != nil {
		log.Fatalf("failed to bootstrap engine from store: %v", err)
	}
	log.Println("✓ engine bootstrapped from store")

	// ── Initialize handlers ─────────────────────────────
	fixHandler := handler.NewFixHandler(eng)
	tripHandler := handler.NewTripHandler(eng)
	trainHandler := handler.NewTrainHandler(eng)
	trackHandler := handler.NewTrackHandler(eng)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/fixes", fixHandler.SubmitFix).Methods(http.MethodPost)

	api.HandleFunc("/trips/{train_id}/start", tripHandler.StartTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips/{train_id}/stop", tripHandler.StopTrip).Methods(http.MethodPost)

	api.HandleFunc("/trains", trainHandler.ListTrains).Methods(http.MethodGet)
	api.HandleFunc("/trains", trainHandler.RegisterTrain).Methods(http.MethodPost)
	api.HandleFunc("/trains/{id}", trainHandler.GetTrain).Methods(http.MethodGet)

	api.HandleFunc("/tracks", trackHandler.UploadTrack).Methods(http.MethodPost)
	api.HandleFunc("/tracks", trackHandler.ListTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{track_id}", trackHandler.GetTrack).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{track_id}", trackHandler.DeleteTrack).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{track_id}/activate", trackHandler.ActivateTrack).Methods(http.MethodPost)

	// Wrap with request logging and panic recovery, in that order so a
	// recovered panic is still logged with its latency.
	wrapped := middleware.RequestLogger(middleware.Recoverer(router))

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("⏳ Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
