package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/askcsv/internal/dataset"
	"github.com/KaramelBytes/askcsv/internal/pipeline"
	"github.com/KaramelBytes/askcsv/internal/utils"
)

var (
	askJSON        bool
	askSQL         string
	askPrintPrompt bool
	askDelimiter   string
	askMaxRows     int
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question]",
	Short: "Answer a question about a CSV/TSV file",
	Example: `  askcsv ask phones.csv "average price per brand"
  askcsv ask phones.csv --sql "SELECT brand, MAX(price) FROM data_table" --json
  askcsv ask phones.csv "top rated phones" --print-prompt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		question := ""
		if len(args) == 2 {
			question = strings.TrimSpace(args[1])
		}
		if question == "" && strings.TrimSpace(askSQL) == "" {
			return fmt.Errorf("a question or --sql is required")
		}
		delim, err := parseDelimiter(askDelimiter)
		if err != nil {
			return err
		}
		ds, err := dataset.LoadFile(args[0], dataset.LoadOptions{Delimiter: delim, MaxRows: askMaxRows})
		if err != nil {
			return err
		}

		log := appLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		defer startMetrics(ctx, c, log)()

		pipe := pipeline.New(buildChain(c, log), log,
			pipeline.WithSampleRows(c.SampleRows),
			pipeline.WithQueryTimeout(c.QueryTimeout()),
		)
		req := pipeline.Request{Dataset: ds, Question: question, SQL: askSQL}
		out := cmd.OutOrStdout()
		if askPrintPrompt && question != "" {
			for _, m := range pipe.Prompt(req).Chat() {
				fmt.Fprintf(out, "--- %s ---\n%s\n", m.Role, m.Content)
			}
			fmt.Fprintln(out)
		}

		resp := pipe.Run(ctx, req)
		if askJSON {
			b, err := utils.PrettyJSON(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			fmt.Fprint(out, resp.Markdown())
		}
		if !resp.OK() {
			return fmt.Errorf("no answer (%s)", resp.ErrorKind)
		}
		return nil
	},
}

// parseDelimiter maps the --delimiter flag to a rune; empty means sniff
// from the file extension.
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",":
		return ',', nil
	case "\t", "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported --delimiter: %s", s)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the response as JSON")
	askCmd.Flags().StringVar(&askSQL, "sql", "", "run this SQL instead of generating one (still repaired and validated)")
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the generation prompt before running")
	askCmd.Flags().StringVar(&askDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "maximum rows to load (0 = unlimited)")
}
