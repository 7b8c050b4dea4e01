package netnoise

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newLoopbackTCPListener(t *testing.T) *net.TCPListener {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return ln
}

func TestTCPServerWriteSpacing(t *testing.T) {
	s, err := NewTCPServer(net.ListenConfig{}, "127.0.0.1:0", 8, 2)
	require.NoError(t, err)

	ln := newLoopbackTCPListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- s.Serve(ctx, zaptest.NewLogger(t), ln)
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))

	b := make([]byte, 8)

	// The first payload arrives immediately after accept.
	_, err = io.ReadFull(c, b)
	require.NoError(t, err)
	firstRead := time.Now()

	// The second is one write interval (500ms at rate 2) later.
	_, err = io.ReadFull(c, b)
	require.NoError(t, err)
	spacing := time.Since(firstRead)

	require.GreaterOrEqual(t, spacing, 250*time.Millisecond)
	require.LessOrEqual(t, spacing, 1500*time.Millisecond)

	cancel()

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestTCPServerClientDisconnectDoesNotStopAccepting(t *testing.T) {
	s, err := NewTCPServer(net.ListenConfig{}, "127.0.0.1:0", 16, 20)
	require.NoError(t, err)

	ln := newLoopbackTCPListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- s.Serve(ctx, zaptest.NewLogger(t), ln)
	}()

	b := make([]byte, 16)

	// First client reads one payload and hangs up.
	c1, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, c1.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = io.ReadFull(c1, b)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	// The accept loop must still serve a second client.
	c2, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c2.Close()
	require.NoError(t, c2.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err = io.ReadFull(c2, b)
	require.NoError(t, err)

	cancel()

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestTCPServerCancelWithoutClients(t *testing.T) {
	s, err := NewTCPServer(net.ListenConfig{}, "127.0.0.1:0", 8, 4)
	require.NoError(t, err)

	ln := newLoopbackTCPListener(t)
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- s.Serve(ctx, zaptest.NewLogger(t), ln)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("idle server did not stop after cancellation")
	}
}
