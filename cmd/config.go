package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and manage meetscribe configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Init writes a config file with default values to the config directory
(~/.meetscribe/config.yaml, or $MEETSCRIBE_CONFIG_DIR when set). Existing
files are left untouched unless --force is given.`,
	RunE: runConfigInit,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.Provider.APIToken != "" {
		shown.Provider.APIToken = "********"
	}
	if shown.Database != nil && shown.Database.Password != "" {
		dbCopy := *shown.Database
		dbCopy.Password = "********"
		shown.Database = &dbCopy
	}
	if shown.Redis != nil && shown.Redis.Password != "" {
		redisCopy := *shown.Redis
		redisCopy.Password = "********"
		shown.Redis = &redisCopy
	}

	return printResult(shown, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Config file:    %s\n", configLocation())
		fmt.Fprintf(&b, "Provider URL:   %s\n", shown.Provider.BaseURL)
		fmt.Fprintf(&b, "Output format:  %s\n", shown.OutputFormat)
		fmt.Fprintf(&b, "Tenant:         %s\n", shown.TenantID)
		fmt.Fprintf(&b, "Max attempts:   %d\n", shown.Fetch.MaxAttempts)
		fmt.Fprintf(&b, "Database:       %v\n", shown.Database.IsConfigured())
		fmt.Fprintf(&b, "Redis:          %v", shown.Redis.IsConfigured())
		return b.String()
	})
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
