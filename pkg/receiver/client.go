// Package receiver reads AVR-format Mode S frames from a TCP feed, such as
// the raw output port (30002) of dump1090 or a compatible decoder.
package receiver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultPort is the conventional raw AVR output port of dump1090.
const DefaultPort = 30002

// Dialer opens network connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// LineHandler is called for every non-empty line read from the feed.
// An error returned from it stops the client.
type LineHandler func(line string) error

// Client connects to a raw feed and delivers its lines.
type Client struct {
	// Addr is the host:port of the feed
	Addr string

	// Dialer opens the connection (default: net.Dialer with a 10 second timeout)
	Dialer Dialer

	// Retry controls reconnection (default: DefaultRetryConfig)
	Retry RetryConfig

	// Logger receives connection events (default: slog.Default)
	Logger *slog.Logger

	lines       atomic.Int64
	connections atomic.Int64
}

// NewClient creates a Client for host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		Addr: net.JoinHostPort(host, fmt.Sprint(port)),
	}
}

// Lines returns the number of lines delivered so far.
func (c *Client) Lines() int64 {
	return c.lines.Load()
}

// Connections returns the number of successful connections made so far.
func (c *Client) Connections() int64 {
	return c.connections.Load()
}

// Run connects to the feed and calls handle for each line until ctx is
// cancelled, handle fails, or reconnecting exhausts the retry budget.
// A connection that delivered data before closing starts a fresh budget.
// Cancellation is not reported as an error.
func (c *Client) Run(ctx context.Context, handle LineHandler) error {
	cfg := c.retryConfig()
	logger := c.logger()

	for {
		err := RetryWithBackoff(ctx, cfg, func() error {
			return c.session(ctx, handle)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		logger.Info("feed closed, reconnecting", "addr", c.Addr)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.InitialDelay):
		}
	}
}

// session runs one connection. It returns nil when the connection closed
// after delivering data, a retryable error when it failed before that, and
// a permanent error when handle failed or ctx ended.
func (c *Client) session(ctx context.Context, handle LineHandler) error {
	conn, err := c.dialer().DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		if ctx.Err() != nil {
			return Permanent(ctx.Err())
		}
		return fmt.Errorf("failed to connect to %s: %w", c.Addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.connections.Add(1)
	c.logger().Info("connected to feed", "addr", c.Addr)

	delivered := 0
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		delivered++
		c.lines.Add(1)
		if err := handle(line); err != nil {
			return Permanent(err)
		}
	}

	if ctx.Err() != nil {
		return Permanent(ctx.Err())
	}
	if delivered > 0 {
		if err := scanner.Err(); err != nil {
			c.logger().Warn("feed read failed", "addr", c.Addr, "error", err)
		}
		return nil
	}

	err = scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("feed %s closed without data: %w", c.Addr, err)
}

func (c *Client) retryConfig() RetryConfig {
	cfg := c.Retry
	if cfg.InitialDelay <= 0 && cfg.MaxRetries == 0 && cfg.MaxDelay <= 0 {
		onRetry := cfg.OnRetry
		cfg = DefaultRetryConfig()
		cfg.OnRetry = onRetry
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.OnRetry == nil {
		logger := c.logger()
		cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Warn("feed unavailable", "addr", c.Addr, "attempt", attempt, "retry_in", delay, "error", err)
		}
	}
	return cfg
}

func (c *Client) dialer() Dialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return &net.Dialer{Timeout: 10 * time.Second}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
