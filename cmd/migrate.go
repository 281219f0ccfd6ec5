package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/db"
)

var (
	migrationsDir    string
	migrationsTarget string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Migrate runs the .sql files from the migrations directory against the
configured database in version order, tracking applied versions so each
migration runs once. With --target, migration stops after the named
version.`,
	RunE: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied, pending, and drifted migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "directory containing .sql migration files")
	migrateCmd.Flags().StringVar(&migrationsTarget, "target", "", "stop after this migration version")
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, closePool, err := connectPool(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	var result *db.MigrationResult
	if migrationsTarget != "" {
		result, err = db.RunMigrationsToTarget(ctx, pool, migrationsDir, migrationsTarget)
	} else {
		result, err = db.RunMigrations(ctx, pool, migrationsDir)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return printResult(result, func() string {
		if len(result.Applied) == 0 {
			return fmt.Sprintf("Database up to date (%d migrations already applied)", len(result.Skipped))
		}
		return fmt.Sprintf("Applied %d migrations: %s", len(result.Applied), strings.Join(result.Applied, ", "))
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, closePool, err := connectPool(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	status, err := db.GetMigrationStatus(ctx, pool, migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}

	return printResult(status, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Applied: %d\n", len(status.Applied))
		for _, m := range status.Applied {
			fmt.Fprintf(&b, "  %s  %s  (%s)\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(&b, "Pending: %d\n", len(status.Pending))
		for _, m := range status.Pending {
			fmt.Fprintf(&b, "  %s  %s\n", m.Version, m.Name)
		}
		if len(status.Drift) > 0 {
			fmt.Fprintf(&b, "Drift (applied but file missing): %d\n", len(status.Drift))
			for _, m := range status.Drift {
				fmt.Fprintf(&b, "  %s\n", m.Version)
			}
		}
		return strings.TrimRight(b.String(), "\n")
	})
}
