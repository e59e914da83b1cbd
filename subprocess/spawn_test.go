package subprocess

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnCapturesStdoutAndExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "echo hello; echo world 1>&2"}, Options{NeedStdout: true})
	require.NoError(t, err)

	out, err := io.ReadAll(h.Stdout)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(out))

	require.NoError(t, h.Wait())
	require.Equal(t, "world\n", h.StderrTail())
}

func TestSpawnDrainsUnreadStdout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Writes enough output that an unconsumed pipe would deadlock without
	// active draining.
	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "head -c 200000 /dev/zero"}, Options{NeedStdout: false})
	require.NoError(t, err)
	require.NoError(t, h.Wait())
}

func TestSpawnNonZeroExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "exit 3"}, Options{})
	require.NoError(t, err)
	require.Error(t, h.Wait())
}

func TestSpawnStderrLineCallback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lines []string
	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "echo a 1>&2; echo b 1>&2"}, Options{
		OnStderrLine: func(l string) { lines = append(lines, l) },
	})
	require.NoError(t, err)
	require.NoError(t, h.Wait())
	require.Equal(t, []string{"a", "b"}, lines)
}

func TestHeaderArgsNilWhenNoHostOverride(t *testing.T) {
	require.Nil(t, HeaderArgs(http.Header{}))
	require.Nil(t, HeaderArgs(nil))
}

func TestHeaderArgsCarriesHostOverride(t *testing.T) {
	header := http.Header{}
	header.Set("Host", "original.example.com")
	require.Equal(t, []string{"-headers", "Host: original.example.com\r\n"}, HeaderArgs(header))
}

func TestSpawnKillStopsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := Spawn(ctx, "/bin/sh", []string{"-c", "sleep 30"}, Options{})
	require.NoError(t, err)
	h.Kill()
	err = h.Wait()
	require.Error(t, err)

	// killing again (simulating a race with the OS already having reaped
	// the child) must not panic.
	h.Kill()
}
