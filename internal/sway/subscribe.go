package sway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
)

// Subscription is a dedicated connection delivering events in arrival order.
type Subscription struct {
	conn   net.Conn
	events chan Event

	closing   chan struct{}
	closeOnce sync.Once
	stop      func() bool

	mu  sync.Mutex
	err error
}

type subscribeReply struct {
	Success bool `json:"success"`
}

// Subscribe connects to the socket at path and subscribes to the given
// event categories. The subscription ends when ctx is done, Close is called
// or the window manager closes the connection.
func Subscribe(ctx context.Context, path string, types ...EventType) (*Subscription, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	sub, err := NewSubscription(ctx, c, types...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return sub, nil
}

// NewSubscription sends SUBSCRIBE on an established connection and starts
// reading events from it.
func NewSubscription(ctx context.Context, c net.Conn, types ...EventType) (*Subscription, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode subscribe: %w", err)
	}

	if err := writeMessage(c, uint32(MsgSubscribe), payload); err != nil {
		return nil, fmt.Errorf("send subscribe: %w", err)
	}
	typ, reply, err := readMessage(c)
	if err != nil {
		return nil, fmt.Errorf("read subscribe reply: %w", err)
	}
	if typ != uint32(MsgSubscribe) {
		return nil, fmt.Errorf("%w: subscribe answered with %#x", ErrUnexpectedReply, typ)
	}
	var ack subscribeReply
	if err := json.Unmarshal(reply, &ack); err != nil {
		return nil, fmt.Errorf("decode subscribe reply: %w", err)
	}
	if !ack.Success {
		return nil, fmt.Errorf("subscribe to %v rejected", names)
	}

	s := &Subscription{
		conn:    c,
		events:  make(chan Event, 16),
		closing: make(chan struct{}),
	}
	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })

	ipcLog.Debug("ipc_subscribed", slog.Any("events", names))
	go s.reader()
	return s, nil
}

// Events delivers events until the subscription ends, then is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err reports why the subscription ended. It is nil for a clean shutdown
// (EOF, Close, context cancellation). Only meaningful after Events is closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		err = s.conn.Close()
	})
	return err
}

func (s *Subscription) reader() {
	defer func() {
		if s.stop != nil {
			s.stop()
		}
		close(s.events)
	}()

	for {
		typ, payload, err := readMessage(s.conn)
		if err != nil {
			s.finish(err)
			return
		}
		if typ&eventBit == 0 {
			ipcLog.Debug("ipc_stray_reply", slog.Int("type", int(typ)))
			continue
		}
		select {
		case s.events <- Event{Type: EventType(typ), Payload: payload}:
		case <-s.closing:
			return
		}
	}
}

func (s *Subscription) finish(err error) {
	select {
	case <-s.closing:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		ipcLog.Debug("ipc_stream_closed")
		return
	}
	s.mu.Lock()
	s.err = fmt.Errorf("read event: %w", err)
	s.mu.Unlock()
}
