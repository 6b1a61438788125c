package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"geoplayer/internal/database"
	"geoplayer/internal/game"
	"geoplayer/internal/server"
)

func main() {
	addr := flag.String("addr", envOr("ADDR", ":3001"), "listen address")
	dbPath := flag.String("db", envOr("DB_PATH", "./geoplayer.db"), "sqlite database path")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	store, err := database.NewStore(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	manager := game.NewManager(store)
	handler := server.NewHandler(manager, store)

	http.HandleFunc("/", handler.HealthHandler)
	http.HandleFunc("/check_room", handler.CheckRoomHandler)
	http.HandleFunc("/stats", handler.StatsHandler)
	http.HandleFunc("/ws", handler.HandleGameWS)

	log.Info().Str("addr", *addr).Msg("server listening")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
