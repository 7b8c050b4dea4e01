package netnoise

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netnoise/netnoise/fastrand"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TCPServer listens for TCP clients and writes random payloads to each
// of them at a fixed rate.
type TCPServer struct {
	listenConfig net.ListenConfig
	address      string
	bufferSize   int
	writeRate    int
}

// NewTCPServer creates a new TCPServer. bufferSize and writeRate must
// be at least 1.
func NewTCPServer(listenConfig net.ListenConfig, address string, bufferSize, writeRate int) (*TCPServer, error) {
	if err := checkBufferSize(bufferSize); err != nil {
		return nil, err
	}
	if err := checkWriteRate(writeRate); err != nil {
		return nil, err
	}
	return &TCPServer{
		listenConfig: listenConfig,
		address:      address,
		bufferSize:   bufferSize,
		writeRate:    writeRate,
	}, nil
}

var _ Runner = (*TCPServer)(nil)

// Run binds the listen address and serves accepted clients until ctx is
// done.
func (s *TCPServer) Run(ctx context.Context, logger *zap.Logger) error {
	ln, err := s.listenConfig.Listen(ctx, "tcp", s.address)
	if err != nil {
		logger.Warn("Failed to listen on TCP address",
			zap.String("listenAddress", s.address),
			zap.Error(err),
		)
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, logger, ln.(*net.TCPListener))
}

// Serve accepts clients on ln until ctx is done, giving each accepted
// connection its own write loop. Accepting stays non-blocking relative
// to in-flight clients, and all client loops are joined before Serve
// returns. Serve closes ln.
func (s *TCPServer) Serve(ctx context.Context, logger *zap.Logger, ln *net.TCPListener) error {
	listenAddress := ln.Addr()

	logger.Info("Listening for TCP clients",
		zap.Stringer("listenAddress", listenAddress),
		zap.Int("bufferSize", s.bufferSize),
		zap.Int("writeRate", s.writeRate),
	)

	stop := unblockOnDone(ctx, ln)

	var (
		wg        sync.WaitGroup
		bytesSent atomic.Uint64
		err       error
	)

	for {
		c, aerr := ln.AcceptTCP()
		if aerr != nil {
			if isCancellation(ctx, aerr) {
				break
			}
			logger.Warn("Failed to accept TCP client", zap.Error(aerr))
			err = fmt.Errorf("accept: %w", aerr)
			break
		}

		logger.Info("Accepted TCP client", zap.Stringer("clientAddress", c.RemoteAddr()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveClient(ctx, logger, c, &bytesSent)
		}()
	}

	stop()
	err = multierr.Append(err, ln.Close())
	wg.Wait()

	logger.Info("Stopped TCP server",
		zap.Stringer("listenAddress", listenAddress),
		zap.Uint64("bytesSent", bytesSent.Load()),
	)
	return err
}

// serveClient writes random payloads to c every write interval until
// ctx is done or the write fails. A failure here terminates only this
// client's loop.
func (s *TCPServer) serveClient(ctx context.Context, logger *zap.Logger, c *net.TCPConn, total *atomic.Uint64) {
	defer c.Close()

	clientAddress := c.RemoteAddr()
	stop := unblockOnDone(ctx, c)
	defer stop()

	r := fastrand.New()
	b := make([]byte, s.bufferSize)
	ticker := time.NewTicker(writeInterval(s.writeRate))
	defer ticker.Stop()

	var bytesSent uint64

	for ctx.Err() == nil {
		r.Fill(b)

		n, err := c.Write(b)
		bytesSent += uint64(n)
		total.Add(uint64(n))
		if err != nil {
			if !isCancellation(ctx, err) {
				logger.Warn("Failed to write to TCP client",
					zap.Stringer("clientAddress", clientAddress),
					zap.Error(err),
				)
			}
			break
		}

		logger.Info("Wrote to TCP client",
			zap.Stringer("clientAddress", clientAddress),
			zap.Int("bytesWritten", n),
		)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	logger.Info("Disconnected TCP client",
		zap.Stringer("clientAddress", clientAddress),
		zap.Uint64("bytesSent", bytesSent),
	)
}
