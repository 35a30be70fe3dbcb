// Package discord speaks the local Discord IPC protocol used to publish rich
// presence, and resolves official application ids from the public detectable
// application list.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by commands issued without a live connection.
var ErrNotConnected = errors.New("discord: not connected")

const (
	pipeSlots      = 10
	ioTimeout      = 5 * time.Second
	protocolVer    = 1
	cmdSetActivity = "SET_ACTIVITY"
	evtReady       = "READY"
	evtError       = "ERROR"
)

// Dialer opens a raw IPC connection.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Options configures a Client.
type Options struct {
	ApplicationID string
	// Dial overrides socket discovery, mainly for tests.
	Dial   Dialer
	PID    int
	Logger zerolog.Logger
}

// Client is a single IPC connection bound to one application id.
type Client struct {
	appID  string
	dial   Dialer
	pid    int
	logger zerolog.Logger

	mu   sync.Mutex
	conn io.ReadWriteCloser
}

type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string `json:"cmd"`
	Args  any    `json:"args"`
	Nonce string `json:"nonce"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient builds an unconnected client.
func NewClient(opts Options) *Client {
	dial := opts.Dial
	if dial == nil {
		dial = DialDefault
	}
	pid := opts.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	return &Client{
		appID:  opts.ApplicationID,
		dial:   dial,
		pid:    pid,
		logger: opts.Logger.With().Str("component", "discord").Str("application_id", opts.ApplicationID).Logger(),
	}
}

// DialDefault tries the well-known IPC endpoints and returns the first that
// accepts a connection.
func DialDefault(ctx context.Context) (io.ReadWriteCloser, error) {
	var lastErr error
	for _, path := range candidatePaths() {
		conn, err := dialPath(ctx, path)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no ipc endpoints")
	}
	return nil, fmt.Errorf("dial discord ipc: %w", lastErr)
}

// ApplicationID returns the id the client handshakes with.
func (c *Client) ApplicationID() string { return c.appID }

// Connected reports whether a handshake has completed and the connection has
// not failed since.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials and performs the handshake. Connecting an already connected
// client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	if c.appID == "" {
		return fmt.Errorf("application id required")
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	setDeadline(conn)
	if err := writeFrame(conn, OpHandshake, handshake{Version: protocolVer, ClientID: c.appID}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	resp, err := readResponse(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Evt != evtReady {
		_ = conn.Close()
		return fmt.Errorf("handshake: unexpected event %q", resp.Evt)
	}
	c.conn = conn
	c.logger.Debug().Msg("connected")
	return nil
}

// SetActivity publishes a. A nil activity clears the presence.
func (c *Client) SetActivity(a *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	nonce := uuid.NewString()
	cmd := command{
		Cmd:   cmdSetActivity,
		Args:  activityArgs{PID: c.pid, Activity: a},
		Nonce: nonce,
	}
	setDeadline(c.conn)
	if err := writeFrame(c.conn, OpFrame, cmd); err != nil {
		c.dropLocked(err)
		return err
	}
	for {
		resp, err := readResponse(c.conn)
		if err != nil {
			c.dropLocked(err)
			return err
		}
		if resp.Nonce != nonce {
			continue
		}
		if resp.Evt == evtError {
			var data errorData
			_ = json.Unmarshal(resp.Data, &data)
			return fmt.Errorf("set activity: %s (code %d)", data.Message, data.Code)
		}
		return nil
	}
}

// ClearActivity removes the presence.
func (c *Client) ClearActivity() error {
	return c.SetActivity(nil)
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	setDeadline(c.conn)
	_ = writeFrame(c.conn, OpClose, struct{}{})
	err := c.conn.Close()
	c.conn = nil
	c.logger.Debug().Msg("closed")
	return err
}

func (c *Client) dropLocked(err error) {
	c.logger.Warn().Err(err).Msg("ipc connection lost")
	_ = c.conn.Close()
	c.conn = nil
}

// readResponse reads frames until a command response arrives, answering pings
// along the way.
func readResponse(rw io.ReadWriter) (response, error) {
	for {
		op, body, err := readFrame(rw)
		if err != nil {
			return response{}, err
		}
		switch op {
		case OpFrame:
			var resp response
			if err := json.Unmarshal(body, &resp); err != nil {
				return response{}, fmt.Errorf("decode frame: %w", err)
			}
			return resp, nil
		case OpPing:
			var payload any = struct{}{}
			if json.Valid(body) {
				payload = json.RawMessage(body)
			}
			if err := writeFrame(rw, OpPong, payload); err != nil {
				return response{}, err
			}
		case OpClose:
			var data errorData
			_ = json.Unmarshal(body, &data)
			return response{}, fmt.Errorf("closed by peer: %s (code %d)", data.Message, data.Code)
		}
	}
}

func setDeadline(conn io.ReadWriteCloser) {
	if d, ok := conn.(interface{ SetDeadline(time.Time) error }); ok {
		_ = d.SetDeadline(time.Now().Add(ioTimeout))
	}
}
