package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Health reports the outcome of a connectivity probe against the transcript
// store, including pool occupancy at probe time.
type Health struct {
	Healthy       bool          `json:"healthy" yaml:"healthy"`
	Latency       time.Duration `json:"latency" yaml:"latency"`
	TotalConns    int32         `json:"total_conns" yaml:"total_conns"`
	IdleConns     int32         `json:"idle_conns" yaml:"idle_conns"`
	AcquiredConns int32         `json:"acquired_conns" yaml:"acquired_conns"`
	MaxConns      int32         `json:"max_conns" yaml:"max_conns"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// CheckHealth pings the database and reports latency and pool stats.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) Health {
	if pool == nil {
		return Health{Error: "pool is nil"}
	}

	start := time.Now()
	err := pool.Ping(ctx)
	h := Health{Latency: time.Since(start)}
	if err != nil {
		h.Error = fmt.Sprintf("ping failed: %v", err)
		return h
	}

	stats := pool.Stat()
	h.Healthy = true
	h.TotalConns = stats.TotalConns()
	h.IdleConns = stats.IdleConns()
	h.AcquiredConns = stats.AcquiredConns()
	h.MaxConns = stats.MaxConns()
	return h
}

// WaitForReady polls the database until it answers a ping or the context is
// cancelled.
func WaitForReady(ctx context.Context, pool *pgxpool.Pool, pollInterval time.Duration) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}

	if err := pool.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := pool.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
