package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medflow/allocation-engine/internal/allocation/consumers"
	"github.com/medflow/allocation-engine/internal/allocation/engine"
	"github.com/medflow/allocation-engine/internal/allocation/events"
	"github.com/medflow/allocation-engine/internal/allocation/handler"
	"github.com/medflow/allocation-engine/internal/allocation/service"
	"github.com/medflow/allocation-engine/pkg/config"
	"github.com/medflow/allocation-engine/pkg/httputil"
	"github.com/medflow/allocation-engine/pkg/logger"
	"github.com/medflow/allocation-engine/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("allocation-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("allocation-service", cfg.Server.Environment)
	log.Info().Msg("starting Allocation Service")

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewAllocationEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize engine and comparator from configured weights
	eng, err := engine.NewWithWeights(engine.Weights{
		FEFO: cfg.Engine.FEFOWeight,
		Cost: cfg.Engine.CostWeight,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid engine weights")
	}

	comparator, err := engine.NewComparatorWithTolerance(eng, cfg.Engine.CostTolerance)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid comparator tolerance")
	}

	// Initialize service and handler
	allocationService := service.NewAllocationService(eng, comparator, publisher, log)
	allocationHandler := handler.NewAllocationHandler(allocationService, log)

	// Start allocation request consumer
	requestConsumer, err := consumers.NewRequestConsumer(rmq, allocationService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create request consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := requestConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start request consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "allocation-service",
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/allocation", func(r chi.Router) {
		r.Post("/allocate", allocationHandler.Allocate)
		r.Post("/compare", allocationHandler.Compare)
		r.Get("/strategies", allocationHandler.Strategies)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
