package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/sampledb"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-sample")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	kindFlag := flag.String("kind", cfg.Database.Kind, "database kind: sqlite|mysql|postgres")
	dsn := flag.String("dsn", cfg.Database.DSN, "target database DSN")
	customers := flag.Int("customers", 0, "generated customers in addition to the fixed rows")
	orders := flag.Int("orders", 0, "generated orders in addition to the fixed rows")
	products := flag.Int("products", 0, "generated products in addition to the fixed rows")
	seed := flag.Int64("seed", 1, "random seed for generated rows")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)
	kind, err := database.ParseKind(*kindFlag)
	if err != nil {
		logger.Error("invalid database kind", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(ctx, database.Config{Kind: kind, DSN: *dsn})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	seeder := &sampledb.Seeder{DB: db, Kind: kind, Logger: logger}
	summary, err := seeder.Seed(ctx, sampledb.Options{
		ExtraCustomers: *customers,
		ExtraOrders:    *orders,
		ExtraProducts:  *products,
		RandomSeed:     *seed,
	})
	if err != nil {
		logger.Error("failed to seed sample database", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("sample database ready",
		slog.String("kind", string(kind)),
		slog.Int("customers", summary.Customers),
		slog.Int("orders", summary.Orders),
		slog.Int("products", summary.Products),
	)
}
