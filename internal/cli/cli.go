// Package cli dispatches the threadchat command line:
//
//	threadchat c <username> <host>   run the terminal client
//	threadchat s                     run the server with its console
//
// Anything else exits silently with status 0.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/codefionn/threadchat/internal/config"
	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/socketclient"
	"github.com/codefionn/threadchat/internal/socketserver"
	"github.com/codefionn/threadchat/internal/tui"
)

// Exit statuses.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitCannotConnect = 2
)

const cannotConnect = "Cannot connect to remote host."

// IO bundles the process streams so tests can substitute them.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Run executes args (without the program name) and returns the exit status.
func Run(ctx context.Context, args []string, stdio IO) int {
	switch {
	case len(args) >= 3 && args[0] == "c":
		return runCommand(stdio, func(cfg *config.Config) int {
			return runClient(ctx, cfg, args[1], args[2], stdio)
		})
	case len(args) >= 1 && args[0] == "s":
		return runCommand(stdio, func(cfg *config.Config) int {
			return runServer(ctx, cfg, stdio)
		})
	default:
		return ExitOK
	}
}

// runCommand loads the configuration, opens the log and runs fn.
func runCommand(stdio IO, fn func(cfg *config.Config) int) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		return ExitError
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		fmt.Fprintf(stdio.Err, "Error: failed to initialize logger: %v\n", err)
		return ExitError
	}
	defer func() {
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(stdio.Err, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Debug("Configuration loaded: log_level=%s, log_path=%s", cfg.LogLevel, cfg.LogPath)
	return fn(cfg)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runClient(ctx context.Context, cfg *config.Config, username, host string, stdio IO) int {
	client := socketclient.NewClient(socketclient.ConfigFromApp(cfg, username, host))
	if err := client.Connect(ctx); err != nil {
		logger.Error("Connect to %s failed: %v", host, err)
		fmt.Fprintln(stdio.Out, cannotConnect)
		return ExitCannotConnect
	}
	defer client.Close()

	logger.Info("Connected to %s as %s", host, username)

	if err := tui.Run(client, cfg.Client.InputCapacity); err != nil {
		if errors.Is(err, socketclient.ErrReconnectFailed) {
			fmt.Fprintln(stdio.Out, cannotConnect)
			return ExitCannotConnect
		}
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		return ExitError
	}
	return ExitOK
}

func runServer(ctx context.Context, cfg *config.Config, stdio IO) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := socketserver.NewServer(cfg)
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		return ExitError
	}

	console := socketserver.NewConsole(srv, stdio.In, stdio.Out)
	console.Printf("Listening on %s. Press h for help.", srv.Addr())
	if err := console.Run(); err != nil {
		logger.Warn("Console stopped: %v", err)
	}

	// without a console the server runs until signalled
	<-srv.Done()
	if err := srv.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		return ExitError
	}

	fmt.Fprintln(stdio.Out, "Bye!")
	return ExitOK
}
