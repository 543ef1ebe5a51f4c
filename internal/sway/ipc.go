// Package sway talks to sway (or i3) over its IPC socket: request/response
// messages on one connection and an ordered event stream on another.
package sway

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/asheshgoplani/piow/internal/logging"
)

var ipcLog = logging.ForComponent(logging.CompIPC)

// MessageType is the type field of a request and its reply.
type MessageType uint32

const (
	MsgRunCommand    MessageType = 0
	MsgGetWorkspaces MessageType = 1
	MsgSubscribe     MessageType = 2
	MsgGetOutputs    MessageType = 3
	MsgGetTree       MessageType = 4
	MsgGetVersion    MessageType = 7
)

// eventBit marks a message as an event rather than a reply.
const eventBit = 1 << 31

// EventType identifies an event category.
type EventType uint32

const (
	EventWorkspace       EventType = eventBit | 0
	EventOutput          EventType = eventBit | 1
	EventMode            EventType = eventBit | 2
	EventWindow          EventType = eventBit | 3
	EventBarconfigUpdate EventType = eventBit | 4
	EventBinding         EventType = eventBit | 5
	EventShutdown        EventType = eventBit | 6
	EventTick            EventType = eventBit | 7
)

var eventNames = map[EventType]string{
	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarconfigUpdate: "barconfig_update",
	EventBinding:         "binding",
	EventShutdown:        "shutdown",
	EventTick:            "tick",
}

// String returns the name used in SUBSCRIBE payloads.
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%#x)", uint32(t))
}

const (
	magic     = "i3-ipc"
	headerLen = len(magic) + 8

	// maxPayload bounds a single message; real trees are far smaller.
	maxPayload = 64 << 20
)

var (
	ErrBadMagic        = errors.New("bad ipc magic")
	ErrPayloadTooLarge = errors.New("ipc payload too large")
	ErrUnexpectedReply = errors.New("unexpected ipc reply")
	ErrNoSocket        = errors.New("no window manager socket: SWAYSOCK and I3SOCK are unset")
)

type socketEnv struct {
	Sway string `env:"SWAYSOCK"`
	I3   string `env:"I3SOCK"`
}

// SocketPath returns $SWAYSOCK, falling back to $I3SOCK.
func SocketPath() (string, error) {
	var se socketEnv
	if err := env.Parse(&se); err != nil {
		return "", fmt.Errorf("parse env: %w", err)
	}
	switch {
	case se.Sway != "":
		return se.Sway, nil
	case se.I3 != "":
		return se.I3, nil
	default:
		return "", ErrNoSocket
	}
}

func writeMessage(w io.Writer, typ uint32, payload []byte) error {
	buf := make([]byte, headerLen+len(payload))
	copy(buf, magic)
	binary.NativeEndian.PutUint32(buf[len(magic):], uint32(len(payload)))
	binary.NativeEndian.PutUint32(buf[len(magic)+4:], typ)
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

func readMessage(r io.Reader) (uint32, []byte, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	if !bytes.Equal(header[:len(magic)], []byte(magic)) {
		return 0, nil, fmt.Errorf("%w: %q", ErrBadMagic, header[:len(magic)])
	}
	size := binary.NativeEndian.Uint32(header[len(magic):])
	typ := binary.NativeEndian.Uint32(header[len(magic)+4:])
	if size > maxPayload {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return typ, payload, nil
}

// Conn is a request/response connection. Requests are serialised, so a
// Conn may be shared between goroutines.
type Conn struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the IPC socket at path.
func Dial(ctx context.Context, path string) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	ipcLog.Debug("ipc_connected", slog.String("socket", path))
	return NewConn(c), nil
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) request(ctx context.Context, typ MessageType, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Unblock the pending read or write once ctx is done. The deadline is
	// cleared again for the next request.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			_ = c.conn.SetDeadline(time.Time{})
		}
	}()

	if err := writeMessage(c.conn, uint32(typ), payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("send message %d: %w", typ, err)
	}
	replyType, reply, err := readMessage(c.conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read reply %d: %w", typ, err)
	}
	if replyType != uint32(typ) {
		return nil, fmt.Errorf("%w: sent %d, got %#x", ErrUnexpectedReply, typ, replyType)
	}
	return reply, nil
}

func (c *Conn) requestJSON(ctx context.Context, typ MessageType, payload []byte, out any) error {
	reply, err := c.request(ctx, typ, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("decode reply %d: %w", typ, err)
	}
	return nil
}

// RunCommand runs a command string. The window manager reports one result
// per sub-command; a rejected command is not an error here.
func (c *Conn) RunCommand(ctx context.Context, command string) ([]CommandResult, error) {
	var results []CommandResult
	if err := c.requestJSON(ctx, MsgRunCommand, []byte(command), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetTree returns the root of the layout tree.
func (c *Conn) GetTree(ctx context.Context) (*Node, error) {
	var root Node
	if err := c.requestJSON(ctx, MsgGetTree, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// GetWorkspaces lists the workspaces.
func (c *Conn) GetWorkspaces(ctx context.Context) ([]Workspace, error) {
	var ws []Workspace
	if err := c.requestJSON(ctx, MsgGetWorkspaces, nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// GetVersion returns the window manager version.
func (c *Conn) GetVersion(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.requestJSON(ctx, MsgGetVersion, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
