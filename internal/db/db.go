package db

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/AwesomeSam9523/Spades/internal/game"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres using DATABASE_URL.
func Open() (*gorm.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// Configure applies connection pool settings.
func Configure(conn *gorm.DB, maxOpen, maxIdle, lifetimeSeconds, idleSeconds int) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(lifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(idleSeconds) * time.Second)
	return nil
}

// Migrate runs GORM auto-migrations for the core tables. The SQL
// migrations under db/migrations are authoritative; this is the dev
// fallback.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&game.Room{},
		&game.Member{},
		&game.Round{},
		&game.RoundEntry{},
		&game.Event{},
	); err != nil {
		return err
	}
	log.Println("database migration complete")
	return nil
}
