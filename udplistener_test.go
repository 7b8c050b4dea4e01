package netnoise

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestUDPListenerLogsDatagramLengths(t *testing.T) {
	uc := newLoopbackUDPConn(t)

	l := NewUDPListener(net.ListenConfig{}, ":0")
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- l.Serve(ctx, zap.New(core), uc)
	}()

	sender, err := net.Dial("udp", uc.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write(make([]byte, 16))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Received UDP datagram").Len() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	entry := logs.FilterMessage("Received UDP datagram").All()[0]
	require.Equal(t, int64(16), entry.ContextMap()["bytesReceived"])

	cancel()

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestUDPListenerIdleCancel(t *testing.T) {
	uc := newLoopbackUDPConn(t)

	l := NewUDPListener(net.ListenConfig{}, ":0")
	ctx, cancel := context.WithCancel(context.Background())

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- l.Serve(ctx, zaptest.NewLogger(t), uc)
	}()

	// No traffic at all; the blocked receive must still unblock.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serveDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("idle listener did not stop after cancellation")
	}
}

func TestUDPListenerBindFailure(t *testing.T) {
	uc := newLoopbackUDPConn(t)
	defer uc.Close()

	// Binding the same address again must fail and be terminal.
	l := NewUDPListener(net.ListenConfig{}, uc.LocalAddr().String())
	err := l.Run(context.Background(), zaptest.NewLogger(t))
	require.Error(t, err)
}
