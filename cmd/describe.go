package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/askcsv/internal/analysis"
	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/utils"
)

var (
	descOutputPath string
	descDelimiter  string
	descSampleRows int
	descMaxRows    int
	descJSON       bool
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Print the schema and a per-column profile of a CSV/TSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delim, err := parseDelimiter(descDelimiter)
		if err != nil {
			return err
		}
		ds, err := dataset.LoadFile(args[0], dataset.LoadOptions{Delimiter: delim, MaxRows: descMaxRows})
		if err != nil {
			return err
		}
		schema := dataset.Describe(ds)
		prof := analysis.ProfileDataset(ds, descSampleRows)

		var doc string
		if descJSON {
			b, err := utils.PrettyJSON(struct {
				Schema  dataset.Schema    `json:"schema"`
				Profile *analysis.Profile `json:"profile"`
			}{schema, prof})
			if err != nil {
				return err
			}
			doc = string(b) + "\n"
		} else {
			var b strings.Builder
			b.WriteString("[TABLE]\n")
			b.WriteString(schema.String())
			b.WriteString("\n\n")
			b.WriteString(prof.Markdown())
			doc = b.String()
		}

		if descOutputPath != "" {
			if err := utils.SafeWriteFile(descOutputPath, []byte(doc)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote description to %s\n", descOutputPath)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), doc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "optional path to write the description")
	describeCmd.Flags().StringVar(&descDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 5, "number of sample rows to include")
	describeCmd.Flags().IntVar(&descMaxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	describeCmd.Flags().BoolVar(&descJSON, "json", false, "print schema and profile as JSON")
}
