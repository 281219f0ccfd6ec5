package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wealthpath/meetscribe/pkg/captions"
)

var parseShowText bool

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a WebVTT caption file into a structured transcript",
	Long: `Parse reads a WebVTT caption file and prints the speakers it found,
their speaking time, and optionally the compiled transcript text.

Speaker names are taken from "Name: text" cue lines; cues without a
recognizable label are attributed to Unknown.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseShowText, "text", false, "print the full transcript text")
	rootCmd.AddCommand(parseCmd)
}

type parseOutput struct {
	File     string              `json:"file" yaml:"file"`
	Speakers []*captions.Speaker `json:"speakers" yaml:"speakers"`
	Segments int                 `json:"segments" yaml:"segments"`
	FullText string              `json:"full_text,omitempty" yaml:"full_text,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := captions.NewParser().Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := parseOutput{
		File:     path,
		Speakers: parsed.Speakers,
		Segments: parsed.SegmentCount(),
	}
	if parseShowText {
		out.FullText = parsed.FullText
	}

	return printResult(out, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Parsed %s: %d speakers, %d segments\n", path, len(parsed.Speakers), out.Segments)
		for _, sp := range parsed.Speakers {
			fmt.Fprintf(&b, "  %-12s %-20s %6.1fs across %d segments\n",
				sp.ID, sp.Name, sp.TotalDurationSeconds, len(sp.Segments))
		}
		if parseShowText {
			b.WriteString("\n")
			b.WriteString(parsed.FullText)
		}
		return strings.TrimRight(b.String(), "\n")
	})
}
