package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Tonic56/coinfolio/internal/config"
	"github.com/Tonic56/coinfolio/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Storage struct {
	DB *gorm.DB
}

// New opens the ledger database, retrying while postgres comes up, and
// migrates the profile, ledger and news tables.
func New(log *slog.Logger, cfg config.DBConfig) (*Storage, error) {
	const op = "storage/postgres.New"

	db, err := connect(log, cfg.ConnectAttempts, cfg.ConnectWait, func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("connected to postgres", "host", cfg.Host, "db", cfg.DBName)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}
	log.Info("ledger schema is up to date")

	return &Storage{DB: db}, nil
}

func DSN(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, sslMode)
}

// connect calls open up to attempts times, sleeping wait between failures.
func connect(log *slog.Logger, attempts int, wait time.Duration, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var db *gorm.DB
		if db, err = open(); err == nil {
			return db, nil
		}
		if attempt == attempts {
			break
		}
		log.Warn("postgres is not ready, retrying", "attempt", attempt, "of", attempts, "wait", wait, "error", err)
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("no connection after %d attempts: %w", attempts, err)
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Transaction{},
		&models.Post{},
		&models.Reaction{},
	)
}

func (s *Storage) Stop() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
