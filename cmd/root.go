package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/arin/mimir/internal/config"
	"github.com/arin/mimir/internal/logging"
)

var (
	includeLogs    bool
	includeHistory bool
	manCommand     string
	noSpinner      bool
	verbose        bool
	logJSON        bool

	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "mimir",
	Short: "A terminal troubleshooting assistant backed by a local model",
	Long: `mimir asks a locally running Ollama model for help with Linux problems
and streams the answer to your terminal as it is generated.

Optionally include local context with the question:
  mimir --logs                 include /var/log/syslog
  mimir --history              include ~/.bash_history
  mimir --man tar              include the manual page of tar
  mimir --model llama3.2:1b    use another model (default: tinyllama)
  mimir --profile balanced     use the model and temperature of a profile`,
	Args:                       cobra.NoArgs,
	RunE:                       ask,
	SilenceUsage:               true,
	SilenceErrors:              true,
	SuggestionsMinimumDistance: 1,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(
			logging.WithWriter(cmd.ErrOrStderr()),
			logging.WithDebug(verbose),
			logging.WithJSON(logJSON),
		)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&includeLogs, "logs", false, "Include system log contents (/var/log/syslog)")
	rootCmd.Flags().BoolVar(&includeHistory, "history", false, "Include shell history (~/.bash_history)")
	rootCmd.Flags().StringVar(&manCommand, "man", "", "Include the manual page of `command`")
	rootCmd.Flags().String("model", config.DefaultModel, "Ollama model to use")
	rootCmd.Flags().Float64("temperature", 0, "Sampling temperature, 0.0-1.0 (model default when unset)")
	rootCmd.Flags().String("profile", "", "Use a model profile (lightweight, balanced, powerful or one from the config file)")
	rootCmd.Flags().Bool("trailing-line", false, "Parse an unterminated final line instead of dropping it")
	rootCmd.Flags().BoolVar(&noSpinner, "no-spinner", false, "Do not show a spinner while waiting for the first token")

	rootCmd.PersistentFlags().String("host", config.DefaultHost, "Ollama base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write log records as JSON lines")

	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the entry point called from main. Ctrl-C cancels the request.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
