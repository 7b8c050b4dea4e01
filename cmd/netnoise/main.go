// Command netnoise exchanges random byte payloads over TCP or UDP to
// observe connectivity and throughput between two hosts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "netnoise <protocol> <role> <args...>",
		Short:        "Exchange random byte payloads over TCP or UDP",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().AddFlagSet(persistentFlags())
	viper.BindPFlags(cmd.PersistentFlags())
	viper.SetEnvPrefix("netnoise")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cmd.AddCommand(newTCPCmd(), newUDPCmd())
	return cmd
}

func persistentFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("netnoise", pflag.ContinueOnError)
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.Duration("duration", 0, "Stop after this duration (0 means run until interrupted)")
	return fs
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// runLoop runs the selected loop until it finishes, the configured
// duration elapses, or an exit signal arrives. Loop failures are
// surfaced through the logger, not the exit code.
func runLoop(run func(ctx context.Context, logger *zap.Logger) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d := viper.GetDuration("duration"); d > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("Received exit signal", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return run(ctx, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Warn("Loop terminated", zap.Error(err))
	}
	return nil
}

func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(arg)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", arg)
	}
	return port, nil
}

// optionalIntArg resolves an optional positional argument, falling back
// to the NETNOISE_* environment (via viper) and then to def.
func optionalIntArg(args []string, i int, key string, def int) (int, error) {
	if len(args) > i {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", key, args[i])
		}
		return v, nil
	}
	if v := viper.GetInt(key); v > 0 {
		return v, nil
	}
	return def, nil
}
