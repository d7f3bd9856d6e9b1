package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/utils"
)

// RconClient talks to a game server's webrcon endpoint: JSON frames
// over a websocket, correlated by an Identifier the server echoes back.
// All commands share one connection and are serialized through a mutex
// so command sequences issued by different zones never interleave on
// the wire.
type RconClient struct {
	serverID string
	addr     string
	password string
	timeout  time.Duration
	logger   logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

type rconRequest struct {
	Identifier int    `json:"Identifier"`
	Message    string `json:"Message"`
	Name       string `json:"Name"`
}

type rconResponse struct {
	Identifier int    `json:"Identifier"`
	Message    string `json:"Message"`
	Type       string `json:"Type"`
}

// NewRconClient creates a client for one game server. The connection
// is dialed lazily on first use and redialed after transport errors.
func NewRconClient(serverID, addr, password string, timeout time.Duration, log logger.Logger) *RconClient {
	return &RconClient{
		serverID: serverID,
		addr:     addr,
		password: password,
		timeout:  timeout,
		logger:   log,
		nextID:   1,
	}
}

func (c *RconClient) ApplyPermissions(ctx context.Context, zoneName string, perms Permissions) error {
	_, err := c.run(ctx, permissionsCommand(zoneName, perms))
	return err
}

func (c *RconClient) ApplyColor(ctx context.Context, zoneName, color string) error {
	_, err := c.run(ctx, colorCommand(zoneName, color))
	return err
}

func (c *RconClient) CreateZone(ctx context.Context, zone *domain.Zone) error {
	_, err := c.run(ctx, createCommand(zone))
	return err
}

func (c *RconClient) DeleteZone(ctx context.Context, zoneName string) error {
	_, err := c.run(ctx, deleteCommand(zoneName))
	return err
}

func (c *RconClient) ListLiveZones(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, listCommand)
	if err != nil {
		return nil, err
	}
	return parseZoneList(out), nil
}

// Close tears down the connection. Safe to call with no connection up.
func (c *RconClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// run sends one command and waits for the matching response. The whole
// exchange is bounded by the client timeout (or the context deadline,
// whichever is sooner).
func (c *RconClient) run(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.ensureConn(ctx); err != nil {
		return "", err
	}

	id := c.nextID
	c.nextID++

	req := rconRequest{Identifier: id, Message: command, Name: "zorp"}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal rcon request: %w", err)
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return "", c.fail(err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return "", c.fail(err)
	}

	// Read frames until ours comes back; the console also pushes
	// unsolicited chat/log frames with Identifier 0.
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return "", c.fail(err)
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", c.fail(err)
		}

		var resp rconResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.Identifier != id {
			continue
		}

		if isRejection(resp.Message) {
			return "", fmt.Errorf("%w: %s: %s", ErrRejected, command, firstLine(resp.Message))
		}
		return resp.Message, nil
	}
}

// ensureConn dials the websocket if no connection is up. Callers hold
// the mutex.
func (c *RconClient) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/" + c.password}
	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.logger.Warn("rcon dial failed",
			logger.String("server_id", c.serverID),
			logger.String("addr", c.addr),
			logger.Error(err))
		return fmt.Errorf("%w: dial %s: %v", ErrTimeout, c.addr, err)
	}

	c.logger.Info("rcon connected",
		logger.String("server_id", c.serverID),
		logger.String("addr", c.addr))
	c.conn = conn
	return nil
}

// fail classifies a connection error as transport-level, drops the
// connection so the next call redials, and wraps the error.
func (c *RconClient) fail(err error) error {
	if c.conn != nil {
		utils.Close(c.conn)
		c.conn = nil
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	// Any broken-pipe style failure also means the channel is gone.
	return fmt.Errorf("%w: %v", ErrTimeout, err)
}

func isRejection(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.HasPrefix(lower, "error") ||
		strings.Contains(lower, "unknown command") ||
		strings.Contains(lower, "invalid syntax")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
