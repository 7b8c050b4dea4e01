// Package netnoise exercises network paths with randomly generated byte
// payloads. It provides four loop components: a TCP server that writes
// noise to every accepted client, a TCP client that reads until the
// peer closes, a UDP sender that broadcasts datagrams at a fixed rate,
// and a UDP listener that counts whatever arrives.
package netnoise

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxDatagramSize is the largest UDP payload that fits in a single
	// IPv4 packet: 65535 - 8 (UDP header) - 20 (IPv4 header).
	MaxDatagramSize = 65507

	// DefaultBufferSize is the default TCP payload buffer size.
	DefaultBufferSize = 1024

	// DefaultDatagramSize is the default UDP payload size.
	// 1452 (UDP payload) + 8 (UDP header) + 40 (IPv6 header) = 1500 (Typical Ethernet MTU).
	DefaultDatagramSize = 1452

	// DefaultWriteRate is the default number of payloads sent per second.
	DefaultWriteRate = 4
)

// Runner is a diagnostic loop. Run blocks until ctx is cancelled or the
// loop hits a terminal failure, releasing its socket on every exit path.
type Runner interface {
	Run(ctx context.Context, logger *zap.Logger) error
}

func checkBufferSize(bufferSize int) error {
	if bufferSize < 1 {
		return fmt.Errorf("buffer size must be at least 1, got %d", bufferSize)
	}
	return nil
}

func checkDatagramSize(bufferSize int) error {
	if err := checkBufferSize(bufferSize); err != nil {
		return err
	}
	if bufferSize > MaxDatagramSize {
		return fmt.Errorf("buffer size %d exceeds maximum datagram size %d", bufferSize, MaxDatagramSize)
	}
	return nil
}

func checkWriteRate(writeRate int) error {
	if writeRate < 1 {
		return fmt.Errorf("write rate must be at least 1, got %d", writeRate)
	}
	return nil
}

// writeInterval converts a write rate in messages per second to the
// delay between consecutive sends.
func writeInterval(writeRate int) time.Duration {
	return time.Second / time.Duration(writeRate)
}

// deadliner is the deadline control shared by net.TCPListener,
// net.TCPConn and net.UDPConn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// unblockOnDone makes d's pending and future I/O fail with
// os.ErrDeadlineExceeded once ctx is cancelled, so a blocked
// accept/read/write unblocks promptly instead of lingering.
// The returned stop function releases the watcher goroutine.
func unblockOnDone(ctx context.Context, d deadliner) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.SetDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// isCancellation reports whether err is the deadline error injected by
// unblockOnDone after ctx was cancelled, i.e. a clean shutdown rather
// than a socket failure.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded)
}
