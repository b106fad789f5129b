package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/calwidget/internal/config"
	"github.com/dukerupert/calwidget/internal/database"
	"github.com/dukerupert/calwidget/internal/logging"
	"github.com/dukerupert/calwidget/internal/server"
)

func main() {
	configPath := flag.String("config", "calwidget.yaml", "path to the YAML configuration")
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of an API key and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashKey), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	var db *sql.DB
	if *cfg.Database.Migrate {
		db, err = database.Open(cfg.Database.Path)
	} else {
		db, err = database.OpenWithoutMigrations(cfg.Database.Path)
	}
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checkSchema(context.Background(), db, cfg, logger)

	srv := server.New(cfg, db, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("calwidget running", "url", cfg.Server.BaseURL, "widgets", srv.Registry().Aliases(), "auth", cfg.Auth.Method)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// checkSchema warns about widget fields that name columns the host table
// does not have. Computed columns are skipped.
func checkSchema(ctx context.Context, db *sql.DB, cfg *config.Config, logger *slog.Logger) {
	for _, w := range cfg.Widgets {
		cols, err := database.TableColumns(ctx, db, w.Model.QualifiedTable())
		if err != nil {
			logger.Warn("schema check failed", "widget", w.Alias, "error", err)
			continue
		}
		if len(cols) == 0 {
			logger.Warn("widget table not found", "widget", w.Alias, "table", w.Model.QualifiedTable())
			continue
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c] = true
		}
		for _, field := range []string{w.RecordID, w.RecordTitle, w.RecordStart, w.RecordEnd} {
			if have[field] {
				continue
			}
			if col, ok := w.Columns.Get(field); ok && (col.Relation != "" || col.Select != "") {
				continue
			}
			logger.Warn("widget field is not a table column", "widget", w.Alias, "field", field)
		}
	}
}
