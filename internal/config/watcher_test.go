package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, string(DefaultTOML()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(path, []byte(`
default_icon = "D"
icon_separator = " "
[icons]
foot = "T"
`), 0o600))

	select {
	case cfg := <-w.Updates():
		assert.Equal(t, []string{"foot"}, cfg.Keys())
		assert.Equal(t, "D", cfg.DefaultIcon())
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcher_KeepsConfigOnParseError(t *testing.T) {
	path := writeConfig(t, string(DefaultTOML()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(path, []byte(`default_icon = `), 0o600))

	select {
	case cfg := <-w.Updates():
		t.Fatalf("unexpected reload: %v", cfg.Keys())
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	path := writeConfig(t, string(DefaultTOML()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(path+".bak", DefaultTOML(), 0o600))

	select {
	case <-w.Updates():
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
