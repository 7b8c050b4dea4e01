package netnoise

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// UDPListener binds a local port and logs the length of every datagram
// that arrives.
type UDPListener struct {
	listenConfig net.ListenConfig
	address      string
}

// NewUDPListener creates a new UDPListener.
func NewUDPListener(listenConfig net.ListenConfig, address string) *UDPListener {
	return &UDPListener{
		listenConfig: listenConfig,
		address:      address,
	}
}

var _ Runner = (*UDPListener)(nil)

// Run binds the listen address and receives datagrams until ctx is
// done. A failed bind is terminal.
func (l *UDPListener) Run(ctx context.Context, logger *zap.Logger) error {
	pc, err := l.listenConfig.ListenPacket(ctx, "udp", l.address)
	if err != nil {
		logger.Warn("Failed to listen on UDP address",
			zap.String("listenAddress", l.address),
			zap.Error(err),
		)
		return fmt.Errorf("listen udp %s: %w", l.address, err)
	}
	return l.Serve(ctx, logger, pc.(*net.UDPConn))
}

// Serve receives datagrams on uc until ctx is done or a receive fails.
// A receive blocked on an idle socket unblocks promptly when ctx is
// cancelled. Serve closes uc.
func (l *UDPListener) Serve(ctx context.Context, logger *zap.Logger, uc *net.UDPConn) error {
	defer uc.Close()

	listenAddress := uc.LocalAddr()
	logger.Info("Listening for UDP datagrams", zap.Stringer("listenAddress", listenAddress))

	stop := unblockOnDone(ctx, uc)
	defer stop()

	b := make([]byte, MaxDatagramSize)
	var datagramsReceived, bytesReceived uint64
	var recvErr error
	startTime := time.Now()

	for {
		n, peerAddrPort, err := uc.ReadFromUDPAddrPort(b)
		if err != nil {
			if !isCancellation(ctx, err) {
				logger.Warn("Failed to receive UDP datagram", zap.Error(err))
				recvErr = fmt.Errorf("receive: %w", err)
			}
			break
		}

		datagramsReceived++
		bytesReceived += uint64(n)

		logger.Info("Received UDP datagram",
			zap.Stringer("peerAddress", peerAddrPort),
			zap.Int("bytesReceived", n),
		)
	}

	logger.Info("Stopped UDP listener",
		zap.Stringer("listenAddress", listenAddress),
		zap.Uint64("datagramsReceived", datagramsReceived),
		zap.Uint64("bytesReceived", bytesReceived),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return recvErr
}
