package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/mimir/internal/ai"
	"github.com/arin/mimir/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models installed in Ollama",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFlags(cmd.Flags())
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		client := ai.NewClient(cfg, logger)
		models, err := client.Models(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintf(out, "No models installed. Run: ollama pull %s\n", cfg.Model)
			return nil
		}

		current := color.New(color.FgGreen, color.Bold)
		dim := color.New(color.FgHiBlack)
		for _, m := range models {
			if ai.SameModel(m.Name, cfg.Model) {
				current.Fprintf(out, "* %s", m.Name)
			} else {
				fmt.Fprintf(out, "  %s", m.Name)
			}
			if detail := modelDetail(m); detail != "" {
				dim.Fprintf(out, "  %s", detail)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func modelDetail(m ai.Model) string {
	var parts []string
	if m.Details.ParameterSize != "" {
		parts = append(parts, m.Details.ParameterSize)
	}
	if m.Details.QuantizationLevel != "" {
		parts = append(parts, m.Details.QuantizationLevel)
	}
	if m.Size > 0 {
		parts = append(parts, humanSize(m.Size))
	}
	return strings.Join(parts, ", ")
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
