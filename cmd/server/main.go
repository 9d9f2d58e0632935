package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Frostie0/braina-game-server/internal/config"
	"github.com/Frostie0/braina-game-server/internal/game"
	"github.com/Frostie0/braina-game-server/internal/gateway"
	"github.com/Frostie0/braina-game-server/internal/questions"
	"github.com/Frostie0/braina-game-server/internal/results"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	sink := buildSink(cfg)

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	registry := game.NewRegistry(game.RegistryConfig{
		EmptyRoomGrace: time.Duration(cfg.Rooms.EmptyRoomGraceSec) * time.Second,
		EndedRoomGrace: time.Duration(cfg.Rooms.EndedRoomGraceSec) * time.Second,
		ReapInterval:   time.Duration(cfg.Rooms.ReapIntervalSec) * time.Second,
		DefaultSettings: game.Settings{
			MaxPlayers:      cfg.Rooms.Defaults.MaxPlayers,
			TimePerTurn:     time.Duration(cfg.Rooms.Defaults.TimePerTurnSec) * time.Second,
			TimePerQuestion: time.Duration(cfg.Rooms.Defaults.TimePerQuestionSec) * time.Second,
		},
	}, clockwork.NewRealClock(), connectionManager, sink)
	defer registry.Close()

	connectionManager.SetRegistry(registry)

	done := make(chan struct{})
	go connectionManager.Start(done)

	source := questions.NewFileSource(cfg.Questions.Dir)
	handler := gateway.NewHandler(connectionManager, registry, source)

	server := setupServer(cfg.Server.Port, handler)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("game server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// buildSink wires the configured result destinations: Postgres for durable
// storage, NATS for downstream consumers. With neither configured, results
// are dropped after broadcast.
func buildSink(cfg *config.Config) game.ResultSink {
	var sinks []game.ResultSink

	if cfg.Database.Enabled {
		repo, err := results.Open(cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to results database")
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Database).
			Msg("results database connected")
		sinks = append(sinks, repo)
	}

	if cfg.NATS.Enabled {
		pub, err := results.NewPublisher(results.PublisherConfig{
			URL:           cfg.NATS.URL,
			StreamName:    cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		sinks = append(sinks, pub)
	}

	if len(sinks) == 0 {
		log.Warn().Msg("no result sink configured, terminal summaries will be discarded")
		return game.NopSink{}
	}
	return results.NewMultiSink(sinks...)
}

func setupServer(port string, handler *gateway.Handler) *http.Server {
	mux := http.NewServeMux()

	handler.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}
