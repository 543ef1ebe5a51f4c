package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/piow/internal/config"
	"github.com/asheshgoplani/piow/internal/logging"
	"github.com/asheshgoplani/piow/internal/sway"
	"github.com/asheshgoplani/piow/internal/workspace"
)

// fakeSway answers GET_TREE, RUN_COMMAND and SUBSCRIBE on a unix socket. A
// subscriber gets the queued events, then the connection is closed.
type fakeSway struct {
	path   string
	tree   string
	events []string

	mu       sync.Mutex
	commands []string
}

func startFakeSway(t *testing.T, tree string) *fakeSway {
	t.Helper()
	f := &fakeSway{path: filepath.Join(t.TempDir(), "sway.sock"), tree: tree}
	ln, err := net.Listen("unix", f.path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(c)
		}
	}()
	return f
}

func (f *fakeSway) serve(c net.Conn) {
	defer c.Close()
	for {
		header := make([]byte, 14)
		if _, err := io.ReadFull(c, header); err != nil {
			return
		}
		size := binary.NativeEndian.Uint32(header[6:])
		typ := binary.NativeEndian.Uint32(header[10:])
		payload := make([]byte, size)
		if _, err := io.ReadFull(c, payload); err != nil {
			return
		}

		var reply string
		switch sway.MessageType(typ) {
		case sway.MsgSubscribe:
			if writeFrame(c, typ, `{"success":true}`) != nil {
				return
			}
			for _, ev := range f.events {
				if writeFrame(c, uint32(sway.EventWorkspace), ev) != nil {
					return
				}
			}
			return
		case sway.MsgGetTree:
			reply = f.tree
		case sway.MsgRunCommand:
			f.mu.Lock()
			f.commands = append(f.commands, string(payload))
			f.mu.Unlock()
			reply = `[{"success":true}]`
		default:
			return
		}

		if writeFrame(c, typ, reply) != nil {
			return
		}
	}
}

func writeFrame(c net.Conn, typ uint32, payload string) error {
	out := make([]byte, 14+len(payload))
	copy(out, "i3-ipc")
	binary.NativeEndian.PutUint32(out[6:], uint32(len(payload)))
	binary.NativeEndian.PutUint32(out[10:], typ)
	copy(out[14:], payload)
	_, err := c.Write(out)
	return err
}

func (f *fakeSway) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

const sampleTree = `{
  "id": 1, "name": "root", "type": "root",
  "nodes": [{
    "id": 2, "name": "eDP-1", "type": "output",
    "nodes": [
      {"id": 3, "name": "1", "type": "workspace", "num": 1,
       "nodes": [{"id": 10, "type": "con", "app_id": "foot", "nodes": []}],
       "floating_nodes": []},
      {"id": 4, "name": "2: old", "type": "workspace", "num": 2,
       "nodes": [{"id": 11, "type": "con", "app_id": "firefox", "nodes": []}],
       "floating_nodes": []}
    ]
  }]
}`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `default_icon = "?"
icon_separator = " "
name_format = "%n: %i"

[icons]
firefox = "F"
foot = "T"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func testOptions(t *testing.T, socket string) *options {
	t.Helper()
	return &options{
		configPath: writeConfig(t),
		socket:     socket,
		logLevel:   "error",
		logFormat:  "text",
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Equal(t, "piow v"+Version+"\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"--version"}, &out))
	assert.Contains(t, out.String(), Version)
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "piow check")
	assert.Contains(t, out.String(), "--config")

	out.Reset()
	require.NoError(t, run([]string{"-h"}, &out))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}

func TestRun_UnknownFlag(t *testing.T) {
	err := run([]string{"--no-such-flag"}, io.Discard)
	assert.ErrorIs(t, err, errUsage)
}

func TestLoadConfig_MissingFileWarnsAtDefaultLevel(t *testing.T) {
	if _, err := os.Stat("/etc/xdg/piow/config.toml"); err == nil {
		t.Skip("system config present")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	logPath := filepath.Join(t.TempDir(), "piow.log")
	require.NoError(t, logging.Init(logging.Config{File: logPath, Level: "warn"}))
	defer logging.Shutdown()

	cfg, path := (&options{}).loadConfig()
	assert.Same(t, config.Default(), cfg)
	assert.Empty(t, path)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=WARN")
	assert.Contains(t, string(data), "config_default")
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("PIOW_LOG_LEVEL", "debug")
	t.Setenv("PIOW_CONFIG", "/env/config.toml")

	settings, err := config.ParseEnv()
	require.NoError(t, err)

	fs, opts := newFlagSet("run", settings)
	ok, err := opts.parse(fs, []string{"--log-level", "error"}, io.Discard)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "error", opts.logLevel)
	assert.Equal(t, "/env/config.toml", opts.configPath)
}

func TestLoadConfig_FallsBackToDefault(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[icons\n"), 0o644))

	opts := &options{configPath: broken}
	cfg, path := opts.loadConfig()
	assert.Same(t, config.Default(), cfg)
	assert.Equal(t, broken, path)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	opts = &options{}
	cfg, path = opts.loadConfig()
	if _, err := os.Stat("/etc/xdg/piow/config.toml"); err != nil {
		assert.Same(t, config.Default(), cfg)
		assert.Empty(t, path)
	}
}

func TestExampleConfig_Print(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"example-config"}, &out))
	assert.Equal(t, string(config.DefaultTOML()), out.String())
}

func TestExampleConfig_Write(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	want := filepath.Join(xdg, "piow", "config.toml")

	var out bytes.Buffer
	require.NoError(t, run([]string{"example-config", "--write"}, &out))
	assert.Contains(t, out.String(), want)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTOML(), data)

	err = run([]string{"example-config", "--write"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRunDaemon_Once(t *testing.T) {
	wm := startFakeSway(t, sampleTree)

	err := runDaemon(context.Background(), testOptions(t, wm.path), true, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rename workspace '1' to '1: T'",
		"rename workspace '2: old' to '2: F'",
	}, wm.sent())
}

func TestRunDaemon_FollowsFocusUntilEOF(t *testing.T) {
	wm := startFakeSway(t, sampleTree)
	wm.events = []string{
		`{"change":"init","current":{"id":5,"name":"3","type":"workspace","num":3}}`,
		`{"change":"focus",
		  "current":{"id":4,"name":"2: F","type":"workspace","num":2,
		             "nodes":[{"id":11,"type":"con","app_id":"firefox"},{"id":12,"type":"con","app_id":"foot"}]},
		  "old":{"id":3,"name":"1: T","type":"workspace","num":1,"nodes":[]}}`,
	}

	done := make(chan error, 1)
	go func() { done <- runDaemon(context.Background(), testOptions(t, wm.path), false, false) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runDaemon did not return after the event stream closed")
	}
	assert.Equal(t, []string{
		"rename workspace '1' to '1: T'",
		"rename workspace '2: old' to '2: F'",
		"rename workspace '2: F' to '2: F T'",
		"rename workspace '1: T' to '1: '",
	}, wm.sent())
}

func TestRunDaemon_NoSocket(t *testing.T) {
	opts := testOptions(t, filepath.Join(t.TempDir(), "missing.sock"))
	err := runDaemon(context.Background(), opts, true, false)
	assert.Error(t, err)
}

func TestCheck_DryRun(t *testing.T) {
	wm := startFakeSway(t, sampleTree)

	var out bytes.Buffer
	err := runCheck(context.Background(), testOptions(t, wm.path), false, &out, termenv.Ascii)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "WORKSPACE  NEW NAME  APPLICATIONS", lines[0])
	assert.Equal(t, "1          1: T      foot", lines[1])
	assert.Equal(t, "2: old     2: F      firefox", lines[2])
	assert.Contains(t, lines[3], "2 workspace(s)")
	assert.Empty(t, wm.sent())
}

func TestCheck_Apply(t *testing.T) {
	wm := startFakeSway(t, sampleTree)

	var out bytes.Buffer
	err := runCheck(context.Background(), testOptions(t, wm.path), true, &out, termenv.Ascii)
	require.NoError(t, err)

	assert.Len(t, wm.sent(), 2)
	assert.Contains(t, out.String(), "renamed 2 workspace(s)")
}

func TestRenderPlan_WideGlyphs(t *testing.T) {
	cfg, err := config.New("?", " ", "%n: %i", nil)
	require.NoError(t, err)

	plan := []workspace.RenameCommand{
		{Workspace: "1", NewName: "1: 🦊", Identifiers: []string{"firefox"}},
		{Workspace: "2", NewName: "2: ab", Identifiers: nil},
	}
	var out bytes.Buffer
	renderPlan(&out, plan, cfg, termenv.Ascii)

	lines := strings.Split(out.String(), "\n")
	// The fox is two cells wide, so both rows line up at the same column.
	assert.Equal(t, "1          1: 🦊     firefox", lines[1])
	assert.Equal(t, "2          2: ab     -", lines[2])
}

func TestColorProfile_NotATerminal(t *testing.T) {
	assert.Equal(t, termenv.Ascii, colorProfile(&bytes.Buffer{}))
}
