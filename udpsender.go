package netnoise

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/netnoise/netnoise/fastrand"
	"go.uber.org/zap"
)

// UDPSender broadcasts random datagrams to a fixed remote endpoint at a
// fixed rate. The socket is "connected" to the endpoint, which fixes
// the default destination without establishing a stream.
type UDPSender struct {
	dialer     net.Dialer
	address    string
	bufferSize int
	writeRate  int
}

// NewUDPSender creates a new UDPSender. bufferSize must be between 1
// and MaxDatagramSize; writeRate must be at least 1.
func NewUDPSender(dialer net.Dialer, address string, bufferSize, writeRate int) (*UDPSender, error) {
	if err := checkDatagramSize(bufferSize); err != nil {
		return nil, err
	}
	if err := checkWriteRate(writeRate); err != nil {
		return nil, err
	}
	return &UDPSender{
		dialer:     dialer,
		address:    address,
		bufferSize: bufferSize,
		writeRate:  writeRate,
	}, nil
}

var _ Runner = (*UDPSender)(nil)

// Run sends one datagram per write interval until ctx is done or a send
// fails. Socket failures are terminal; there is no reconnection.
func (s *UDPSender) Run(ctx context.Context, logger *zap.Logger) error {
	conn, err := s.dialer.DialContext(ctx, "udp", s.address)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Failed to open UDP socket",
			zap.String("address", s.address),
			zap.Error(err),
		)
		return fmt.Errorf("open udp %s: %w", s.address, err)
	}
	uc := conn.(*net.UDPConn)
	defer uc.Close()

	logger.Info("Sending UDP datagrams",
		zap.String("address", s.address),
		zap.Int("bufferSize", s.bufferSize),
		zap.Int("writeRate", s.writeRate),
	)

	stop := unblockOnDone(ctx, uc)
	defer stop()

	r := fastrand.New()
	b := make([]byte, s.bufferSize)
	ticker := time.NewTicker(writeInterval(s.writeRate))
	defer ticker.Stop()

	var bytesSent uint64
	var sendErr error
	startTime := time.Now()

	for ctx.Err() == nil {
		r.Fill(b)

		n, err := uc.Write(b)
		bytesSent += uint64(n)
		if err != nil {
			if !isCancellation(ctx, err) {
				logger.Warn("Failed to send UDP datagram",
					zap.String("address", s.address),
					zap.Error(err),
				)
				sendErr = fmt.Errorf("send: %w", err)
			}
			break
		}

		logger.Info("Sent UDP datagram",
			zap.String("address", s.address),
			zap.Int("bytesSent", n),
		)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	logger.Info("Finished sending UDP datagrams",
		zap.String("address", s.address),
		zap.Uint64("bytesSent", bytesSent),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return sendErr
}
