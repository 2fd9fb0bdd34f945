package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/mimir/internal/ai"
	"github.com/arin/mimir/internal/config"
	"github.com/arin/mimir/internal/gather"
	"github.com/arin/mimir/internal/prompt"
	"github.com/arin/mimir/internal/ui"
)

const questionPrompt = "Enter your question or extra info:\n> "

// ask collects context, reads the question from stdin and streams the answer.
func ask(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFlags(cmd.Flags())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	ctx := cmd.Context()

	collector := gather.NewCollector(cfg.MaxContextBytes, logger)
	context := collector.Collect(ctx, gather.Request{
		Logs:    includeLogs,
		History: includeHistory,
		Man:     manCommand,
	})
	logger.Debug("collected context", "bytes", len(context), "logs", includeLogs, "history", includeHistory, "man", manCommand)

	out := bufio.NewWriter(cmd.OutOrStdout())
	fmt.Fprint(out, questionPrompt)
	if err := out.Flush(); err != nil {
		return err
	}

	input, err := readLine(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	messages := prompt.Messages(context, input)

	fmt.Fprint(out, "\n")
	color.New(color.FgCyan, color.Bold).Fprint(out, "Answer:")
	fmt.Fprint(out, "\n\n")
	if err := out.Flush(); err != nil {
		return err
	}

	var sp *ui.Spinner
	if cfg.Spinner && !noSpinner {
		sp = ui.NewSpinner("Thinking...")
	}
	printer := ui.NewPrinter(out, sp)
	client := ai.NewClient(cfg, logger)

	start := time.Now()
	sp.Start()
	stats, err := client.ChatStream(ctx, messages, printer)
	if ferr := printer.Finish(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	logger.Debug("answer complete",
		"model", client.Model(),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"tokens", stats.Tokens,
		"answer_bytes", printer.Written(),
		"lines", stats.Lines,
		"malformed", stats.Malformed,
		"no_content", stats.NoContent,
		"done", stats.Done,
		"done_reason", stats.DoneReason,
		"eval_count", stats.EvalCount,
		"eval_duration", stats.EvalDuration,
		"trailing_bytes", stats.TrailingBytes,
	)
	if stats.ServerError != "" {
		logger.Warn("server reported an error during the answer", "error", stats.ServerError)
	}
	return nil
}

// readLine reads one line of input. End of input without a newline is
// accepted; the result is trimmed.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
