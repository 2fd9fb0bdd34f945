package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/mimir/internal/ai"
	"github.com/arin/mimir/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mimir configuration",
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the default model (default: " + config.DefaultModel + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Model set to %s.\n", args[0])
		return nil
	},
}

var setHostCmd = &cobra.Command{
	Use:   "set-host <url>",
	Short: "Set the Ollama base URL (default: " + config.DefaultHost + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetHost(args[0]); err != nil {
			return fmt.Errorf("failed to save host: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Host set to %s.\n", config.NormalizeHost(args[0]))
		return nil
	},
}

var setTemperatureCmd = &cobra.Command{
	Use:   "set-temperature <0.0-1.0>",
	Short: "Set the default sampling temperature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", args[0], err)
		}
		if err := config.SetTemperature(t); err != nil {
			return fmt.Errorf("failed to save temperature: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Temperature set to %g.\n", t)
		return nil
	},
}

var useProfileCmd = &cobra.Command{
	Use:   "use-profile <name>",
	Short: "Save the model and temperature of a profile as the defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.UseProfile(args[0])
		if err != nil {
			return fmt.Errorf("failed to switch profile: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Switched to %s profile.\n", strings.ToLower(strings.TrimSpace(args[0])))
		fmt.Fprintf(out, "  Model:       %s\n", p.Model)
		fmt.Fprintf(out, "  Temperature: %s\n", formatTemperature(p.Temperature))
		return nil
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List model profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFlags(cmd.Flags())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range config.ProfileNames(cfg.Profiles) {
			p := cfg.Profiles[name]
			fmt.Fprintf(out, "%-12s %s (temperature %s)\n", name, p.Model, formatTemperature(p.Temperature))
		}
		return nil
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFlags(cmd.Flags())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(cfg.Favorites) == 0 {
			fmt.Fprintln(out, "No favorite models set.")
			return nil
		}
		current := color.New(color.FgGreen, color.Bold)
		for i, m := range cfg.Favorites {
			if ai.SameModel(m, cfg.Model) {
				current.Fprintf(out, "%d. %s (current)\n", i+1, m)
				continue
			}
			fmt.Fprintf(out, "%d. %s\n", i+1, m)
		}
		return nil
	},
}

var addFavoriteCmd = &cobra.Command{
	Use:   "add-favorite <model-name>",
	Short: "Add a model to the favorites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := config.AddFavorite(args[0])
		if err != nil {
			return fmt.Errorf("failed to save favorite: %w", err)
		}
		name := strings.TrimSpace(args[0])
		if !added {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already a favorite.\n", name)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to favorites.\n", name)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFlags(cmd.Flags())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		profile := cfg.Profile
		if profile == "" {
			profile = "none"
		}
		fmt.Fprintf(out, "Model:         %s\n", cfg.Model)
		fmt.Fprintf(out, "Host:          %s\n", cfg.Host)
		fmt.Fprintf(out, "Temperature:   %s\n", formatTemperature(cfg.Temperature))
		fmt.Fprintf(out, "Profile:       %s\n", profile)
		fmt.Fprintf(out, "Profiles:      %s\n", strings.Join(config.ProfileNames(cfg.Profiles), ", "))
		fmt.Fprintf(out, "Favorites:     %s\n", strings.Join(cfg.Favorites, ", "))
		fmt.Fprintf(out, "Context limit: %d bytes\n", cfg.MaxContextBytes)
		fmt.Fprintf(out, "Trailing line: %t\n", cfg.TrailingLine)
		fmt.Fprintf(out, "Spinner:       %t\n", cfg.Spinner)
		fmt.Fprintf(out, "Config File:   %s\n", config.Path())
		return nil
	},
}

func formatTemperature(t *float64) string {
	if t == nil {
		return "model default"
	}
	return strconv.FormatFloat(*t, 'g', -1, 64)
}

func init() {
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setHostCmd)
	configCmd.AddCommand(setTemperatureCmd)
	configCmd.AddCommand(useProfileCmd)
	configCmd.AddCommand(profilesCmd)
	configCmd.AddCommand(favoritesCmd)
	configCmd.AddCommand(addFavoriteCmd)
	configCmd.AddCommand(showCmd)
}
