// Package feed reads raw OGN lines from an APRS-IS server or from files.
package feed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"ogn_parser/internal/aprs"
)

// Defaults for the OGN APRS-IS servers.
const (
	DefaultServer    = "aprs.glidernet.org:14580"
	DefaultUser      = "OGNPARSER"
	ReadOnlyPasscode = "-1"
	DefaultKeepAlive = 4 * time.Minute

	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Version is reported in the login line. Software version must not contain spaces.
var Version = "0.1"

// Config describes an APRS-IS connection.
type Config struct {
	Server    string
	User      string
	Passcode  string
	Filter    string // Server side filter, e.g. "r/48.0/11.0/200".
	KeepAlive time.Duration
}

func (c Config) withDefaults() Config {
	if c.Server == "" {
		c.Server = DefaultServer
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Passcode == "" {
		c.Passcode = ReadOnlyPasscode
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	return c
}

// LoginLine returns the APRS-IS login command for cfg.
func LoginLine(cfg Config) string {
	cfg = cfg.withDefaults()
	line := fmt.Sprintf("user %s pass %s vers ogn_parser %s", cfg.User, cfg.Passcode, Version)
	if cfg.Filter != "" {
		line += " filter " + cfg.Filter
	}
	return line
}

// Dialer opens the TCP connection to the server.
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// Client is a read-only APRS-IS client that reconnects until its context is
// cancelled.
type Client struct {
	cfg    Config
	dial   Dialer
	logger *log.Logger
}

// NewClient creates a client. A nil dialer uses net.Dialer.
func NewClient(cfg Config, dial Dialer, logger *log.Logger) *Client {
	if dial == nil {
		var d net.Dialer
		dial = func(ctx context.Context, address string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", address)
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg.withDefaults(), dial: dial, logger: logger}
}

// Run connects to the server and sends every non-comment line to out.
// Disconnects are retried with exponential back-off. Run returns nil when ctx
// is cancelled.
func (c *Client) Run(ctx context.Context, out chan<- string) error {
	backoff := minBackoff
	for {
		start := time.Now()
		err := c.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}

		// A session that stayed up for a while resets the back-off.
		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}
		c.logger.Warn("aprs-is connection lost", "server", c.cfg.Server, "err", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) session(ctx context.Context, out chan<- string) error {
	conn, err := c.dial(ctx, c.cfg.Server)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Server, err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	var mu sync.Mutex
	send := func(line string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := io.WriteString(conn, line+"\r\n")
		return err
	}

	if err := send(LoginLine(c.cfg)); err != nil {
		return fmt.Errorf("send login: %w", err)
	}
	c.logger.Info("connected to aprs-is", "server", c.cfg.Server, "filter", c.cfg.Filter)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.cfg.KeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				closeConn()
				return
			case <-ticker.C:
				if err := send("#keepalive"); err != nil {
					closeConn()
					return
				}
			}
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if aprs.IsComment(line) {
			c.logger.Debug("server comment", "line", line)
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return errors.New("server closed connection")
}
