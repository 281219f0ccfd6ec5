package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/db"
)

var (
	dbCheckWait     bool
	dbCheckInterval time.Duration
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database utilities for the transcript store",
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check database connectivity and pool health",
	Long: `Check pings the configured database and reports latency and connection
pool occupancy. With --wait it polls until the database answers or the
command is interrupted.`,
	RunE: runDBCheck,
}

func init() {
	dbCheckCmd.Flags().BoolVar(&dbCheckWait, "wait", false, "poll until the database is ready")
	dbCheckCmd.Flags().DurationVar(&dbCheckInterval, "interval", time.Second, "poll interval for --wait")
	dbCmd.AddCommand(dbCheckCmd)
	rootCmd.AddCommand(dbCmd)
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, closePool, err := connectPool(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	if dbCheckWait {
		if err := db.WaitForReady(ctx, pool, dbCheckInterval); err != nil {
			return fmt.Errorf("database did not become ready: %w", err)
		}
	}

	health := db.CheckHealth(ctx, pool)
	if err := printResult(health, func() string {
		if !health.Healthy {
			return fmt.Sprintf("Database unhealthy: %s", health.Error)
		}
		return fmt.Sprintf("Database healthy: ping %s, %d/%d connections open (%d idle, %d acquired)",
			health.Latency.Round(timeRound), health.TotalConns, health.MaxConns,
			health.IdleConns, health.AcquiredConns)
	}); err != nil {
		return err
	}

	if !health.Healthy {
		return fmt.Errorf("database unhealthy: %s", health.Error)
	}
	return nil
}
