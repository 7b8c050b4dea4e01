package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/netnoise/netnoise"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tcp",
		Short: "TCP diagnostic loops",
	}
	cmd.AddCommand(newTCPServerCmd(), newTCPClientCmd())
	return cmd
}

func newTCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server <port> [bufferSize] [writeRate]",
		Short: "Listen for TCP clients and write random payloads to each at the write rate",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			bufferSize, err := optionalIntArg(args, 1, "buffer-size", netnoise.DefaultBufferSize)
			if err != nil {
				return err
			}
			writeRate, err := optionalIntArg(args, 2, "write-rate", netnoise.DefaultWriteRate)
			if err != nil {
				return err
			}

			s, err := netnoise.NewTCPServer(net.ListenConfig{}, ":"+strconv.Itoa(port), bufferSize, writeRate)
			if err != nil {
				return err
			}
			return runLoop(s.Run)
		},
	}
}

func newTCPClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client <ip> <port> [bufferSize]",
		Short: "Connect to a TCP server and read until the stream closes",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[1])
			if err != nil {
				return err
			}
			bufferSize, err := optionalIntArg(args, 2, "buffer-size", netnoise.DefaultBufferSize)
			if err != nil {
				return err
			}
			concurrency, err := cmd.Flags().GetInt("concurrency")
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
			}

			c, err := netnoise.NewTCPClient(net.Dialer{}, net.JoinHostPort(args[0], strconv.Itoa(port)), bufferSize)
			if err != nil {
				return err
			}
			return runLoop(func(ctx context.Context, logger *zap.Logger) error {
				return c.RunParallel(ctx, logger, concurrency)
			})
		},
	}
	cmd.Flags().Int("concurrency", 1, "Number of concurrent connections")
	return cmd
}
