// Command overdue-scan flags active rentals past their end date. It runs once
// by default, or repeatedly with -interval for deployments without a cron.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/rentkart/internal/domain/rental"
	"github.com/xenking/rentkart/internal/storage/postgres"
)

type scanner interface {
	CheckOverdueRentals(ctx context.Context) (*rental.OverdueScan, error)
}

func main() {
	var (
		databaseURL string
		interval    time.Duration
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&interval, "interval", 0, "repeat the scan at this interval; 0 scans once")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, databaseURL, interval); err != nil {
		slog.Error("overdue scan failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, interval time.Duration) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return loop(ctx, rental.NewService(postgres.NewRentalRepository(pool)), interval)
}

func loop(ctx context.Context, s scanner, interval time.Duration) error {
	if err := scanOnce(ctx, s); err != nil || interval <= 0 {
		return err
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			// A failed scan is retried on the next tick.
			if err := scanOnce(ctx, s); err != nil {
				slog.Warn("scan failed", slog.String("error", err.Error()))
			}
		}
	}
}

func scanOnce(ctx context.Context, s scanner) error {
	res, err := s.CheckOverdueRentals(ctx)
	if err != nil {
		return errors.Wrap(err, "check overdue rentals")
	}
	ids := make([]string, 0, len(res.Rentals))
	for _, r := range res.Rentals {
		ids = append(ids, r.ID)
	}
	slog.Info("overdue scan completed", slog.Int("flagged", res.Count), slog.Any("rental_ids", ids))
	return nil
}
