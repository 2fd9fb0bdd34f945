// Package ai handles communication with Ollama's local HTTP API: streaming
// chat answers and listing the models that are installed.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arin/mimir/internal/config"
	"github.com/arin/mimir/internal/stream"
)

const (
	chatPath    = "/api/chat"
	tagsPath    = "/api/tags"
	versionPath = "/api/version"

	// metaTimeout bounds the short metadata calls. Chat requests have no
	// timeout; they end when the server closes the stream or ctx is done.
	metaTimeout  = 5 * time.Second
	maxErrorBody = 4 << 10
)

// Client communicates with the Ollama API.
type Client struct {
	host        string
	model       string
	temperature *float64
	httpClient  *http.Client
	logger      *slog.Logger
	streamOpts  []stream.Option
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		host:        strings.TrimRight(cfg.Host, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{},
		logger:      logger,
		streamOpts: []stream.Option{
			stream.WithTrailingLine(cfg.TrailingLine),
			stream.WithLogger(logger),
		},
	}
}

// Model returns the model name sent with chat requests.
func (c *Client) Model() string { return c.model }

// Host returns the base URL of the Ollama server.
func (c *Client) Host() string { return c.host }

// ChatStream posts messages with streaming enabled and passes every token to
// sink as soon as its line has arrived. Transport failures and non-200
// responses are returned as errors before anything reaches sink.
func (c *Client) ChatStream(ctx context.Context, messages []Message, sink stream.TokenSink) (stream.Stats, error) {
	reqBody := ChatRequest{
		Model:    c.model,
		Stream:   true,
		Messages: messages,
	}
	if c.temperature != nil {
		reqBody.Options = &Options{Temperature: c.temperature}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return stream.Stats{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.host + chatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return stream.Stats{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	c.logger.Debug("sending chat request", "url", url, "model", c.model, "bytes", len(body))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stream.Stats{}, c.unreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stream.Stats{}, c.statusError(resp)
	}

	stats, err := stream.Consume(ctx, resp.Body, sink, c.streamOpts...)
	c.logger.Debug("chat stream finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"chunks", stats.Chunks,
		"tokens", stats.Tokens,
		"malformed", stats.Malformed,
		"done", stats.Done,
	)
	return stats, err
}

// Models lists the models installed on the server.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var tags tagsResponse
	if err := c.getJSON(ctx, tagsPath, &tags); err != nil {
		return nil, err
	}
	return tags.Models, nil
}

// HasModel reports whether name is installed. A name without a tag matches
// its ":latest" variant, as Ollama itself resolves it.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if SameModel(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v versionResponse
	if err := c.getJSON(ctx, versionPath, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// SameModel compares model names, treating a missing tag as ":latest".
func SameModel(a, b string) bool {
	return withTag(a) == withTag(b)
}

func withTag(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, metaTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.unreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) unreachable(err error) error {
	return fmt.Errorf("could not reach Ollama at %s, is it running? (start with: ollama serve): %w", c.host, err)
}

// statusError turns a non-200 response into an error, recognising the
// "model not found" case so the user gets the pull command.
func (c *Client) statusError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		c.logger.Debug("could not read error body", "status", resp.StatusCode, "read", len(raw), "err", err)
	}
	msg := strings.TrimSpace(string(raw))

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
		return fmt.Errorf("model %q not found, run: ollama pull %s", c.model, c.model)
	}
	return fmt.Errorf("Ollama API error (status %d): %s", resp.StatusCode, msg)
}
