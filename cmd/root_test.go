package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arin/mimir/internal/ai"
	"github.com/arin/mimir/internal/prompt"
)

// newHome points HOME at a fresh directory and clears the environment
// overrides, so every test starts from the defaults.
func newHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"MIMIR_MODEL", "MIMIR_HOST", "OLLAMA_HOST", "MIMIR_TEMPERATURE", "MIMIR_SPINNER", "MIMIR_TRAILING_LINE", "MIMIR_PROFILE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

// runMimir executes the root command with all flags back at their defaults.
func runMimir(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true
	resetFlags(rootCmd)
	includeLogs, includeHistory, manCommand, noSpinner, verbose, logJSON = false, false, "", false, false, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func ollamaServer(t *testing.T, chat http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	if chat != nil {
		mux.HandleFunc("/api/chat", chat)
	}
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"tinyllama:latest","size":637700138},{"name":"llama3.2:1b"}]}`)
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":"0.5.7"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAsk_StreamsAnswer(t *testing.T) {
	newHome(t)
	var got ai.ChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"Hel`)
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "lo\"}}\n{\"message\":{\"content\":\", world\"}}\n{\"done\":true}\n")
	})

	stdout, _, err := runMimir(t, "  why is my disk full?\n", "--host", srv.URL, "--no-spinner")
	require.NoError(t, err)

	assert.Equal(t, "Enter your question or extra info:\n> \nAnswer:\n\nHello, world\n", stdout)

	assert.Equal(t, "tinyllama", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, prompt.SystemMessage, got.Messages[0].Content)
	assert.Equal(t, prompt.Preamble+"\n\nContext:\n\nInput:\nwhy is my disk full?", got.Messages[1].Content)
	assert.Nil(t, got.Options)
}

func TestAsk_ModelAndTemperatureFlags(t *testing.T) {
	newHome(t)
	var got ai.ChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	_, _, err := runMimir(t, "q\n", "--host", srv.URL, "--no-spinner", "--model", "llama3.2:1b", "--temperature", "0.2")
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:1b", got.Model)
	require.NotNil(t, got.Options)
	assert.InDelta(t, 0.2, *got.Options.Temperature, 1e-9)
}

func TestAsk_ProfileFlag(t *testing.T) {
	newHome(t)
	var got ai.ChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	_, _, err := runMimir(t, "q\n", "--host", srv.URL, "--no-spinner", "--profile", "balanced")
	require.NoError(t, err)

	assert.Equal(t, "llama3.2:1b", got.Model)
	require.NotNil(t, got.Options)
	assert.InDelta(t, 0.2, *got.Options.Temperature, 1e-9)
}

func TestAsk_TemperatureOutOfRange(t *testing.T) {
	newHome(t)
	var called bool
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	stdout, _, err := runMimir(t, "q\n", "--host", srv.URL, "--no-spinner", "--temperature", "1.5")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
	assert.Contains(t, err.Error(), "between 0.0 and 1.0")
	assert.Empty(t, stdout, "nothing is asked before the configuration is valid")
	assert.False(t, called)
}

func TestAsk_JSONLogs(t *testing.T) {
	newHome(t)
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"content":"ok"}}`+"\n")
	})

	_, stderr, err := runMimir(t, "q\n", "--host", srv.URL, "--no-spinner", "-v", "--log-json")
	require.NoError(t, err)

	first := strings.SplitN(strings.TrimSpace(stderr), "\n", 2)[0]
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &rec), "stderr: %s", stderr)
	assert.Equal(t, "collected context", rec["msg"])
}

func TestAsk_InputWithoutNewline(t *testing.T) {
	newHome(t)
	var got ai.ChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	_, _, err := runMimir(t, "no newline", "--host", srv.URL, "--no-spinner")
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.True(t, strings.HasSuffix(got.Messages[1].Content, "\n\nInput:\nno newline"))
}

func TestAsk_HistoryContext(t *testing.T) {
	var got ai.ChatRequest
	srv := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})
	home := newHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".bash_history"), []byte("rm -rf build\n"), 0o600))

	_, _, err := runMimir(t, "what did I run?\n", "--history", "--host", srv.URL, "--no-spinner")
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "Context:\nHistory:\nrm -rf build\n\n\nInput:\nwhat did I run?")
}

func TestAsk_ServerUnreachable(t *testing.T) {
	newHome(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	stdout, _, err := runMimir(t, "q\n", "--host", url, "--no-spinner")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "could not reach Ollama")
	assert.True(t, strings.HasSuffix(stdout, "\nAnswer:\n\n"), "nothing is printed after the header, got %q", stdout)
}

func TestAsk_RejectsArguments(t *testing.T) {
	newHome(t)
	_, _, err := runMimir(t, "", "unexpected")
	require.Error(t, err)
}

func TestModels_MarksCurrent(t *testing.T) {
	newHome(t)
	srv := ollamaServer(t, nil)

	stdout, _, err := runMimir(t, "", "models", "--host", srv.URL)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* tinyllama:latest"), lines[0])
	assert.Contains(t, lines[0], "608.2 MiB")
	assert.Equal(t, "  llama3.2:1b", lines[1])
}

func TestConfig_SetAndShow(t *testing.T) {
	home := newHome(t)

	stdout, _, err := runMimir(t, "", "config", "set-model", "llama3.2:1b")
	require.NoError(t, err)
	assert.Equal(t, "Model set to llama3.2:1b.\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "set-host", "gpu-box:11434")
	require.NoError(t, err)
	assert.Equal(t, "Host set to http://gpu-box:11434.\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Model:         llama3.2:1b\n")
	assert.Contains(t, stdout, "Host:          http://gpu-box:11434\n")
	assert.Contains(t, stdout, "Temperature:   model default\n")
	assert.Contains(t, stdout, filepath.Join(home, ".mimir", "config.json"))
}

func TestConfig_TemperatureProfilesFavorites(t *testing.T) {
	newHome(t)

	_, _, err := runMimir(t, "", "config", "set-temperature", "1.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0.0 and 1.0")

	stdout, _, err := runMimir(t, "", "config", "set-temperature", "0.3")
	require.NoError(t, err)
	assert.Equal(t, "Temperature set to 0.3.\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "use-profile", "powerful")
	require.NoError(t, err)
	assert.Equal(t, "Switched to powerful profile.\n  Model:       llama3.2:3b\n  Temperature: 0.1\n", stdout)

	_, _, err = runMimir(t, "", "config", "use-profile", "turbo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "turbo"`)

	stdout, _, err = runMimir(t, "", "config", "profiles")
	require.NoError(t, err)
	assert.Equal(t, "balanced     llama3.2:1b (temperature 0.2)\n"+
		"lightweight  tinyllama:latest (temperature 0.1)\n"+
		"powerful     llama3.2:3b (temperature 0.1)\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "add-favorite", "phi3:mini")
	require.NoError(t, err)
	assert.Equal(t, "Added phi3:mini to favorites.\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "add-favorite", "phi3:mini")
	require.NoError(t, err)
	assert.Equal(t, "phi3:mini is already a favorite.\n", stdout)

	stdout, _, err = runMimir(t, "", "config", "favorites")
	require.NoError(t, err)
	assert.Equal(t, "1. tinyllama:latest\n2. llama3.2:1b\n3. llama3.2:3b (current)\n"+
		"4. codellama:latest\n5. mistral:latest\n6. phi3:mini\n", stdout)
}

func TestConfig_SetModelRejectsBlank(t *testing.T) {
	newHome(t)

	_, _, err := runMimir(t, "", "config", "set-model", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save model")
}

func TestDoctor_ReportsServer(t *testing.T) {
	newHome(t)
	srv := ollamaServer(t, nil)

	_, stderr, err := runMimir(t, "", "doctor", "--host", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, stderr, "✓ Ollama server reachable: "+srv.URL+" (version 0.5.7)")
	assert.Contains(t, stderr, "✓ Model available (tinyllama): ready")
}

func TestVersion(t *testing.T) {
	newHome(t)
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	stdout, _, err := runMimir(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "mimir 1.2.3 ("), stdout)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "1.9 GiB", humanSize(2019393189))
}
