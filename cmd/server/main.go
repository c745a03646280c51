package main

import (
	"log"
	"net/http"

	"github.com/AwesomeSam9523/Spades/internal/config"
	"github.com/AwesomeSam9523/Spades/internal/db"
	"github.com/AwesomeSam9523/Spades/internal/game"
	"github.com/AwesomeSam9523/Spades/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	srv := server.New(store)
	addr := ":" + cfg.Port
	log.Printf("spades server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}

// openStore connects to Postgres when DATABASE_URL is set and falls
// back to the in-memory store otherwise.
func openStore(cfg config.Config) (game.Store, error) {
	conn, err := db.Open()
	if err != nil {
		log.Printf("running without a database: %v", err)
		return game.NewMemStore(), nil
	}
	if err := db.Configure(conn, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeSeconds, cfg.DBConnMaxIdleTimeSeconds); err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		return nil, err
	}
	return db.NewStore(conn), nil
}
