package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/transcript"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show transcript status counts across all meetings",
	Long: `Stats summarises the meeting store: how many meetings exist and how
they break down by transcript status and fetch status.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repo, closeDB, err := connectRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := repo.AggregateStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return printResult(counts, func() string { return formatStats(counts) })
}

func formatStats(counts transcript.StatusCounts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meetings: %d\n", counts.Total)

	b.WriteString("\nTranscript status:\n")
	for _, k := range sortedKeys(counts.ByStatus) {
		fmt.Fprintf(&b, "  %-12s %d\n", k, counts.ByStatus[transcript.Status(k)])
	}

	b.WriteString("\nFetch status:\n")
	keys := make([]string, 0, len(counts.ByFetchStatus))
	for k := range counts.ByFetchStatus {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-12s %d\n", k, counts.ByFetchStatus[transcript.FetchStatus(k)])
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[transcript.Status]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
