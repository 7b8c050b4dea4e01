package main

import (
	"net"
	"strconv"

	"github.com/netnoise/netnoise"
	"github.com/spf13/cobra"
)

func newUDPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "udp",
		Short: "UDP diagnostic loops: the server broadcasts datagrams, the client listens",
	}
	cmd.AddCommand(newUDPServerCmd(), newUDPClientCmd())
	return cmd
}

func newUDPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server <ip> <port> [bufferSize] [writeRate]",
		Short: "Send random datagrams to the remote endpoint at the write rate",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[1])
			if err != nil {
				return err
			}
			bufferSize, err := optionalIntArg(args, 2, "buffer-size", netnoise.DefaultDatagramSize)
			if err != nil {
				return err
			}
			writeRate, err := optionalIntArg(args, 3, "write-rate", netnoise.DefaultWriteRate)
			if err != nil {
				return err
			}

			s, err := netnoise.NewUDPSender(net.Dialer{}, net.JoinHostPort(args[0], strconv.Itoa(port)), bufferSize, writeRate)
			if err != nil {
				return err
			}
			return runLoop(s.Run)
		},
	}
}

func newUDPClientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "client <port>",
		Short: "Listen on the local port and log every datagram that arrives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}

			l := netnoise.NewUDPListener(net.ListenConfig{}, ":"+strconv.Itoa(port))
			return runLoop(l.Run)
		},
	}
}
