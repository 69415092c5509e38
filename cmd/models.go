package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/askcsv/internal/ai"
	cfgpkg "github.com/KaramelBytes/askcsv/internal/config"
	"github.com/KaramelBytes/askcsv/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect available models and the context window catalog",
	Example: `  askcsv models list --provider gemini
  askcsv models list --provider ollama --json
  askcsv models show`,
}

var (
	listProvider string
	listJSON     bool
	listOffline  bool
)

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models a provider offers",
	Long: `List models a provider offers. Gemini and Ollama are asked live; other
providers, or --offline, fall back to the built-in catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		provider := strings.ToLower(strings.TrimSpace(listProvider))
		known := false
		for _, p := range ai.Providers() {
			known = known || p == provider
		}
		if !known {
			return fmt.Errorf("invalid --provider: %q (use %s)", listProvider, strings.Join(ai.Providers(), ", "))
		}

		var entries []ai.ModelEntry
		if !listOffline {
			entries, err = listLive(cmd.Context(), c, provider)
			if err != nil {
				return fmt.Errorf("list %s models: %w", provider, err)
			}
		}
		if entries == nil {
			for _, mi := range ai.CatalogFor(provider) {
				entries = append(entries, ai.ModelEntry{Name: mi.Name, InputTokenLimit: mi.ContextTokens})
			}
		}

		out := cmd.OutOrStdout()
		if listJSON {
			b, err := utils.PrettyJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCONTEXT\tDESCRIPTION")
		for _, e := range entries {
			ctxTokens := "-"
			if e.InputTokenLimit > 0 {
				ctxTokens = fmt.Sprint(e.InputTokenLimit)
			}
			desc := e.Description
			if e.DisplayName != "" && desc == "" {
				desc = e.DisplayName
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, ctxTokens, oneLine(desc, 60))
		}
		return tw.Flush()
	},
}

// listLive asks the provider's listing endpoint. It returns nil entries for
// providers without one.
func listLive(ctx context.Context, c *cfgpkg.Global, provider string) ([]ai.ModelEntry, error) {
	if provider != ai.ProviderGemini && provider != ai.ProviderOllama {
		return nil, nil
	}
	// Listing is not part of a question, so the configured retries apply.
	b, reason := buildBackend(c, provider, c.RetryMaxAttempts)
	if b == nil {
		return nil, fmt.Errorf("%s", reason)
	}
	lister, ok := b.Runtime.(ai.ModelLister)
	if !ok {
		return nil, nil
	}
	return lister.ListModels(ctx)
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the context window catalog used to budget prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := utils.PrettyJSON(ai.CatalogFor(""))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

// oneLine flattens s and caps it at n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsListCmd.Flags().StringVar(&listProvider, "provider", ai.ProviderGemini, "provider to list: gemini | ollama | openrouter | inference")
	modelsListCmd.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON")
	modelsListCmd.Flags().BoolVar(&listOffline, "offline", false, "use the built-in catalog instead of asking the provider")
}
