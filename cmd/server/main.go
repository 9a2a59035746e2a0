package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"bike_train/internal/config"
	"bike_train/internal/controllers"
	"bike_train/internal/logger"
	"bike_train/internal/middleware"
	"bike_train/internal/ride"
	"bike_train/internal/routes"
	"bike_train/internal/session"
	"bike_train/internal/store"
)

func main() {
	// Initialize structured logging to file
	logger.Setup()

	// Connect to the database
	config.InitDB()

	// Optional Redis backplane for multi-instance room fan-out
	var backplane session.Backplane
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
		})
		backplane = session.NewRedisBackplane(client)
		log.Printf("Room backplane enabled via Redis at %s", addr)
	}

	registry := session.NewRegistry(backplane)
	st := store.NewGormStore(config.DB)
	coordinator := ride.NewCoordinator(st, registry)
	relay := ride.NewRelay(st, registry)
	watch := ride.NewWatchFeed(st, registry)

	sc := controllers.NewSocketController(registry, coordinator, relay, watch)
	rc := controllers.NewRideController(registry)
	ac := controllers.NewAdminController(coordinator)

	r := routes.SetupRouter(sc, rc, ac)

	// Wrap with CORS
	handler := middleware.EnableCORS(r)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + config.GetEnv("PORT", "8080"),
		Handler: handler,
	}

	go func() {
		log.Printf("🚀 Server running at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGTERM/SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit
	log.Println("Shutdown signal received, draining connections...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	if backplane != nil {
		backplane.Close()
	}
	log.Println("Server closed")
}
