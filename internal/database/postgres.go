package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blertbank/backend/internal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// InitDB opens the connection pool and verifies it with a ping
func InitDB(ctx context.Context, cfg config.DatabaseConfig, log *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	log.WithFields(logrus.Fields{
		"host": cfg.Host,
		"name": cfg.Name,
	}).Info("Database connection established")
	return db, nil
}
