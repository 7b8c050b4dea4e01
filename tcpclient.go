package netnoise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TCPClient connects to a TCP endpoint and reads whatever the server
// sends until the stream is closed.
type TCPClient struct {
	dialer     net.Dialer
	address    string
	bufferSize int
}

// NewTCPClient creates a new TCPClient. bufferSize must be at least 1.
func NewTCPClient(dialer net.Dialer, address string, bufferSize int) (*TCPClient, error) {
	if err := checkBufferSize(bufferSize); err != nil {
		return nil, err
	}
	return &TCPClient{
		dialer:     dialer,
		address:    address,
		bufferSize: bufferSize,
	}, nil
}

var _ Runner = (*TCPClient)(nil)

// Run connects once and reads until the peer closes the stream, ctx is
// cancelled, or a read fails. A failed connect is terminal; there is no
// retry. Graceful peer close and cancellation return nil.
func (c *TCPClient) Run(ctx context.Context, logger *zap.Logger) error {
	logger.Info("Connecting to TCP endpoint", zap.String("address", c.address))

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Failed to connect to TCP endpoint",
			zap.String("address", c.address),
			zap.Error(err),
		)
		return fmt.Errorf("connect %s: %w", c.address, err)
	}
	defer conn.Close()

	serverAddress := conn.RemoteAddr()
	logger.Info("Connected to TCP endpoint", zap.Stringer("serverAddress", serverAddress))

	stop := unblockOnDone(ctx, conn.(*net.TCPConn))
	defer stop()

	b := make([]byte, c.bufferSize)
	var bytesReceived uint64
	startTime := time.Now()

	for {
		n, err := conn.Read(b)
		bytesReceived += uint64(n)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("TCP endpoint closed the stream",
					zap.Stringer("serverAddress", serverAddress),
					zap.Uint64("bytesReceived", bytesReceived),
					zap.Duration("elapsed", time.Since(startTime)),
				)
				return nil
			case isCancellation(ctx, err):
				logger.Info("Disconnected from TCP endpoint",
					zap.Stringer("serverAddress", serverAddress),
					zap.Uint64("bytesReceived", bytesReceived),
					zap.Duration("elapsed", time.Since(startTime)),
				)
				return nil
			default:
				logger.Warn("Failed to read from TCP endpoint",
					zap.Stringer("serverAddress", serverAddress),
					zap.Error(err),
				)
				return fmt.Errorf("read: %w", err)
			}
		}

		logger.Info("Read from TCP endpoint",
			zap.Stringer("serverAddress", serverAddress),
			zap.Int("bytesRead", n),
		)
	}
}

// RunParallel runs concurrency independent read loops against the same
// endpoint and waits for all of them to finish.
func (c *TCPClient) RunParallel(ctx context.Context, logger *zap.Logger, concurrency int) error {
	var g errgroup.Group
	for i := 0; i < concurrency; i++ {
		logger := logger.Named(strconv.Itoa(i))
		g.Go(func() error {
			return c.Run(ctx, logger)
		})
	}
	return g.Wait()
}
