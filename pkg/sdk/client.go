// Package sdk is the client-side facade of the ILPI store. It talks to a
// remote ilpi-stored over TCP/TLS or runs the whole stack embedded.
package sdk

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
)

const maxAttempts = 3

// Client is a remote client for ilpi-stored. It implements API.
type Client struct {
	addr   string
	tls    bool
	log    *slog.Logger
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

type ClientOption func(*Client)

// WithoutTLS makes the client dial plain TCP.
func WithoutTLS() ClientOption { return func(c *Client) { c.tls = false } }

func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.log = l } }

// Connect establishes a TLS-encrypted connection to ilpi-stored.
func Connect(addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{addr: addr, tls: true, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	var conn net.Conn
	var err error

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if c.tls {
		config := &tls.Config{
			InsecureSkipVerify: true, // the daemon uses a self-signed cert for internal traffic
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", c.addr, config)
	} else {
		conn, err = dialer.Dial("tcp", c.addr)
	}

	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// remoteError is an ERR reply. It is not retried.
type remoteError struct{ msg string }

func (e *remoteError) Error() string { return e.msg }

// sendAndReceive sends one command line and returns the reply payload with
// the OK prefix stripped. Connection failures are retried with backoff.
func (c *Client) sendAndReceive(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for i := 0; i < maxAttempts; i++ {
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				if sleepErr := sleep(ctx, time.Duration(i*100)*time.Millisecond); sleepErr != nil {
					return "", sleepErr
				}
				continue
			}
		}

		deadline := time.Now().Add(30 * time.Second)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		c.conn.SetDeadline(deadline)

		var resp string
		resp, err = c.roundTrip(cmd)
		if err == nil {
			return resp, nil
		}
		var remote *remoteError
		if errors.As(err, &remote) {
			return "", err
		}

		c.log.Warn("store request failed, reconnecting", "attempt", i+1, "error", err)
		if closeErr := c.reconnect(); closeErr != nil {
			c.log.Warn("reconnect failed", "error", closeErr)
		}

		if sleepErr := sleep(ctx, time.Duration((i+1)*200)*time.Millisecond); sleepErr != nil {
			return "", sleepErr
		}
	}

	return "", fmt.Errorf("failed after %d attempts. last error: %w", maxAttempts, err)
}

func (c *Client) roundTrip(cmd string) (string, error) {
	if _, err := fmt.Fprint(c.conn, cmd+"\n"); err != nil {
		return "", err
	}
	resp, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	switch {
	case resp == "ERR" || strings.HasPrefix(resp, "ERR "):
		return "", &remoteError{msg: strings.TrimSpace(strings.TrimPrefix(resp, "ERR"))}
	case resp == "OK" || resp == "PONG":
		return "", nil
	case strings.HasPrefix(resp, "OK "):
		return strings.TrimPrefix(resp, "OK "), nil
	}
	return "", &remoteError{msg: "unexpected reply: " + resp}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call sends cmd with an optional JSON argument and decodes the reply into out.
func (c *Client) call(ctx context.Context, cmd string, arg any, out any) error {
	if arg != nil {
		payload, err := json.Marshal(arg)
		if err != nil {
			return err
		}
		cmd += " " + string(payload)
	}
	resp, err := c.sendAndReceive(ctx, cmd)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(resp), out)
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sendAndReceive(ctx, "PING")
	return err
}

func (c *Client) FetchAllData(ctx context.Context) (schema.Envelope, error) {
	var env schema.Envelope
	err := c.call(ctx, "LOAD", nil, &env)
	return env, err
}

func (c *Client) SyncEmployees(ctx context.Context, items []schema.Employee) ([]schema.Employee, error) {
	var out []schema.Employee
	err := c.call(ctx, "SYNC_EMPLOYEES", nonNil(items), &out)
	return out, err
}

func (c *Client) SyncShifts(ctx context.Context, items []schema.ShiftRecord) ([]schema.ShiftRecord, error) {
	var out []schema.ShiftRecord
	err := c.call(ctx, "SYNC_SHIFTS", nonNil(items), &out)
	return out, err
}

func (c *Client) SyncVacations(ctx context.Context, items []schema.VacationRequest) ([]schema.VacationRequest, error) {
	var out []schema.VacationRequest
	err := c.call(ctx, "SYNC_VACATIONS", nonNil(items), &out)
	return out, err
}

func (c *Client) ResetSystem(ctx context.Context) (schema.Envelope, error) {
	var env schema.Envelope
	err := c.call(ctx, "RESET", nil, &env)
	return env, err
}

// ImportData validates raw locally so callers get typed errors, then sends
// the normalized patch to the daemon.
func (c *Client) ImportData(ctx context.Context, raw []byte) (schema.Envelope, error) {
	p, err := ParseImport(raw)
	if err != nil {
		return schema.Envelope{}, err
	}
	var env schema.Envelope
	err = c.call(ctx, "IMPORT", p, &env)
	return env, err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	err := c.conn.Close()
	c.conn = nil
	return err
}

// nonNil keeps an empty collection from travelling as null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
