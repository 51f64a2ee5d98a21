package postgres

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/Tonic56/coinfolio/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"first_try", 5, 0, 1, false},
		{"recovers", 5, 2, 3, false},
		{"gives_up", 3, 10, 3, true},
		{"zero_attempts_tries_once", 0, 10, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			db, err := connect(discardLogger(), tt.attempts, 0, func() (*gorm.DB, error) {
				calls++
				if calls <= tt.failures {
					return nil, errors.New("connection refused")
				}
				return &gorm.DB{}, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("expected %d attempts, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "connection refused") {
					t.Errorf("expected wrapped connection error, got %v", err)
				}
				return
			}
			if err != nil || db == nil {
				t.Errorf("expected a connection, got %v", err)
			}
		})
	}
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{"profiles", "transactions", "news_posts", "liked_posts"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestDSN(t *testing.T) {
	cfg := config.DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "coinfolio"}

	if got := DSN(cfg); !strings.Contains(got, "sslmode=disable") || !strings.Contains(got, "port=5433") {
		t.Errorf("unexpected dsn %q", got)
	}

	cfg.SSLMode = "require"
	if got := DSN(cfg); !strings.Contains(got, "sslmode=require") {
		t.Errorf("expected sslmode=require, got %q", got)
	}
}
