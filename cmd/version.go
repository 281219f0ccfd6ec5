package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("meetscribe")
		return printResult(info, func() string {
			return "meetscribe " + buildinfo.String() + " " + info.GoVersion
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
