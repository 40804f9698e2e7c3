package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rootdrew27/DISCO/routes"
	"github.com/rootdrew27/DISCO/services"
	"github.com/rootdrew27/DISCO/socket"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("configuration error")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}

	registry := services.NewRegistry()
	notifier := &services.RegistryNotifier{Registry: registry, Logger: logger}
	tokens := services.NewTokenClient(cfg.LiveKitTokenServerURL)
	matchmaking := services.NewMatchmakingService(
		store,
		registry,
		notifier,
		tokens,
		time.Duration(cfg.MatchExpireTime)*time.Second,
		logger,
	)

	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	// Realtime matchmaking endpoint
	r.Handle("/ws", socket.NewServer(matchmaking, cfg.AuthSecret, cfg.ClientURL, logger))

	// Active-match queries and the session-ended webhook
	routes.RegisterMatchRoutes(r, matchmaking.Active)

	allowedOrigins := []string{"*"}
	if cfg.ClientURL != "" {
		allowedOrigins = []string{cfg.ClientURL}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).
		Msg("matchmaking server starting")
	if err := http.ListenAndServe(":"+cfg.Port, corsHandler); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func buildStore(cfg Config, logger zerolog.Logger) (services.KVStore, error) {
	switch cfg.StoreBackend {
	case "redis":
		return services.NewRedisStore(cfg.RedisURL)
	case "dynamo":
		client := services.InitializeDynamoDBClient()
		return services.NewDynamoStore(client, cfg.DynamoTable), nil
	case "memory":
		logger.Warn().Msg("using in-memory store, state will not survive restarts")
		return services.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.StoreBackend)
	}
}
