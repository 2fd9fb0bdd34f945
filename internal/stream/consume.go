package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const defaultReadSize = 4 << 10

// ErrServer is returned when the stream produced no tokens and the server
// reported an error in-band.
var ErrServer = errors.New("server reported an error")

// TokenSink receives text tokens in arrival order.
type TokenSink interface {
	Token(s string) error
}

// SinkFunc adapts a plain function to TokenSink.
type SinkFunc func(s string) error

func (f SinkFunc) Token(s string) error { return f(s) }

// Stats summarises one consumed stream.
type Stats struct {
	Chunks    int // non-empty reads
	Lines     int // complete lines seen, blank ones included
	Tokens    int // tokens handed to the sink
	Malformed int // lines that were not valid JSON
	NoContent int // valid events without message.content

	Done            bool
	DoneReason      string
	PromptEvalCount int
	EvalCount       int
	TotalDuration   time.Duration
	EvalDuration    time.Duration
	ServerError     string

	TrailingBytes  int  // size of the unterminated tail left at EOF
	TrailingParsed bool // tail was given a final parse attempt
}

type options struct {
	readSize int
	trailing bool
	logger   *slog.Logger
}

// Option configures Consume.
type Option func(*options)

// WithReadSize sets the size of the buffer handed to each Read call.
func WithReadSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithTrailingLine makes Consume try to parse an unterminated final line at
// EOF instead of dropping it.
func WithTrailingLine(enabled bool) Option {
	return func(o *options) {
		o.trailing = enabled
	}
}

// WithLogger routes the consumer's debug and warn records to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Consume reads r until EOF, splitting the bytes into lines with a carry-over
// buffer so lines may span any number of reads. Every line that decodes to an
// event with message.content has that content passed to sink before the next
// read is issued. Lines that are not JSON, or carry no content, are skipped.
//
// A read error other than io.EOF aborts the stream, as does a sink error.
// By default an unterminated line still buffered at EOF is dropped.
func Consume(ctx context.Context, r io.Reader, sink TokenSink, opts ...Option) (Stats, error) {
	o := options{
		readSize: defaultReadSize,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &consumer{sink: sink, logger: o.logger}
	var buf LineBuffer
	chunk := make([]byte, o.readSize)

	for {
		if err := ctx.Err(); err != nil {
			return c.stats, err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			c.stats.Chunks++
			buf.Write(chunk[:n])
			for {
				line, ok := buf.Next()
				if !ok {
					break
				}
				if serr := c.handle(line); serr != nil {
					return c.stats, serr
				}
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.stats, fmt.Errorf("read stream: %w", err)
		}
	}

	if rest := buf.Remaining(); len(bytes.TrimSpace(rest)) > 0 {
		c.stats.TrailingBytes = buf.Len()
		if o.trailing {
			c.stats.TrailingParsed = true
			if err := c.handle(rest); err != nil {
				return c.stats, err
			}
		} else {
			o.logger.Debug("dropping unterminated line at end of stream", "bytes", buf.Len())
		}
	}

	if c.stats.Tokens == 0 && c.stats.ServerError != "" {
		return c.stats, fmt.Errorf("%w: %s", ErrServer, c.stats.ServerError)
	}
	return c.stats, nil
}

type consumer struct {
	sink   TokenSink
	logger *slog.Logger
	stats  Stats
}

// handle processes one complete line. Only a sink failure is returned.
func (c *consumer) handle(line []byte) error {
	c.stats.Lines++
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	ev, err := DecodeEvent(line)
	if err != nil {
		c.stats.Malformed++
		c.logger.Debug("skipping malformed stream line", "err", err, "bytes", len(line))
		return nil
	}

	if ev.Error != "" {
		c.stats.ServerError = ev.Error
		c.logger.Warn("server error in stream", "error", ev.Error)
	}
	if ev.Done {
		c.stats.Done = true
		c.stats.DoneReason = ev.DoneReason
		c.stats.PromptEvalCount = ev.PromptEvalCount
		c.stats.EvalCount = ev.EvalCount
		c.stats.TotalDuration = time.Duration(ev.TotalDuration)
		c.stats.EvalDuration = time.Duration(ev.EvalDuration)
	}

	token, ok := ev.Token()
	if !ok {
		c.stats.NoContent++
		return nil
	}
	if err := c.sink.Token(token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	c.stats.Tokens++
	return nil
}
