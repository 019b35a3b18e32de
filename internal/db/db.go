package db

import (
	"errors"
	"fmt"

	"threadline/internal/logger"
	"threadline/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every store when the requested row is missing.
var ErrNotFound = errors.New("record not found")

var DB *gorm.DB

// Init connects to Postgres, migrates the schema and sets DB.
func Init(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	logger.Info("Database migration completed")

	DB = conn
	return conn, nil
}

func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Article{},
		&models.PodcastEpisode{},
		&models.Comment{},
		&models.Reaction{},
		&models.Mention{},
		&models.NotificationSubscription{},
		&models.Notification{},
	)
	if err != nil {
		logger.Error("Failed to migrate database", zap.Error(err))
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func notFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
