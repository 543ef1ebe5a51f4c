package sway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptSubscribe reads the SUBSCRIBE request on conn, checks it and acks.
func acceptSubscribe(t *testing.T, conn net.Conn, want []string, success bool) {
	t.Helper()
	typ, payload, err := readMessage(conn)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, uint32(MsgSubscribe), typ)
	var got []string
	assert.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, want, got)

	ack := `{"success":true}`
	if !success {
		ack = `{"success":false}`
	}
	assert.NoError(t, writeMessage(conn, uint32(MsgSubscribe), []byte(ack)))
}

func collect(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("subscription did not end")
			return out
		}
	}
}

func TestSubscribe_DeliversInOrder(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		acceptSubscribe(t, server, []string{"workspace"}, true)
		for _, change := range []string{"init", "focus", "empty"} {
			payload := `{"change":"` + change + `","current":null,"old":null}`
			if err := writeMessage(server, uint32(EventWorkspace), []byte(payload)); err != nil {
				return
			}
		}
	}()

	sub, err := NewSubscription(context.Background(), client, EventWorkspace)
	require.NoError(t, err)
	defer sub.Close()

	events := collect(t, sub)
	require.Len(t, events, 3)
	var changes []string
	for _, ev := range events {
		assert.Equal(t, EventWorkspace, ev.Type)
		we, err := ev.Workspace()
		require.NoError(t, err)
		changes = append(changes, we.Change)
	}
	assert.Equal(t, []string{"init", "focus", "empty"}, changes)
	assert.NoError(t, sub.Err(), "EOF is a clean end of stream")
}

func TestSubscribe_Rejected(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		acceptSubscribe(t, server, []string{"workspace", "window"}, false)
	}()

	_, err := NewSubscription(context.Background(), client, EventWorkspace, EventWindow)
	assert.ErrorContains(t, err, "rejected")
}

func TestSubscribe_TruncatedStreamIsAnError(t *testing.T) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		acceptSubscribe(t, server, []string{"workspace"}, true)
		header := make([]byte, headerLen)
		copy(header, magic)
		binary.NativeEndian.PutUint32(header[len(magic):], 100)
		binary.NativeEndian.PutUint32(header[len(magic)+4:], uint32(EventWorkspace))
		_, _ = server.Write(header)
		_, _ = server.Write([]byte(`{"change"`))
	}()

	sub, err := NewSubscription(context.Background(), client, EventWorkspace)
	require.NoError(t, err)

	assert.Empty(t, collect(t, sub))
	assert.Error(t, sub.Err())
}

func TestSubscribe_ContextCancelEndsCleanly(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	go acceptSubscribe(t, server, []string{"workspace"}, true)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := NewSubscription(ctx, client, EventWorkspace)
	require.NoError(t, err)

	cancel()
	assert.Empty(t, collect(t, sub))
	assert.NoError(t, sub.Err())
	assert.NoError(t, sub.Close(), "second Close is a no-op")
}

func TestSubscribe_UnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		acceptSubscribe(t, conn, []string{"workspace"}, true)
		_ = writeMessage(conn, uint32(EventWorkspace), []byte(`{"change":"focus"}`))
	}()

	sub, err := Subscribe(context.Background(), path, EventWorkspace)
	require.NoError(t, err)
	defer sub.Close()

	events := collect(t, sub)
	require.Len(t, events, 1)
	assert.NoError(t, sub.Err())
}
