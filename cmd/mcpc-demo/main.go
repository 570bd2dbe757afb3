// Command mcpc-demo is a stdio MCP server whose tools run in the background and
// report their progress to the client as MCPC callbacks.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vcto/mcpc/internal/config"
	"github.com/vcto/mcpc/internal/debug"
	"github.com/vcto/mcpc/internal/mcpc"
)

// Version information
const (
	serverName    = "mcpc-demo"
	serverVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := mcpc.NewLogger()

	storage, err := debug.NewStorage(cfg.Debug, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Printf("Failed to close debug storage: %v", err)
		}
	}()

	// Host responses and callbacks share stdout; one writer keeps their lines whole
	stdout := mcpc.NewSyncWriter(os.Stdout)

	helper := mcpc.NewHelper(cfg.ProviderName, &mcpc.Options{
		Writer:       stdout,
		Logger:       logger,
		Recorder:     storage,
		ProgressRate: cfg.ProgressRate,
	})

	handlers := newToolHandlers(helper)

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(tagRequestID)

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
	)
	setupTools(s, handlers)

	s.AddNotificationHandler("notifications/cancelled", func(ctx context.Context, notification mcp.JSONRPCNotification) {
		if err := handlers.cancellations.Handle(notification.Notification); err != nil {
			logger.Printf("Invalid cancellation notification: %v", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(log.New(os.Stderr, "stdio: ", log.LstdFlags))

	err = stdio.Listen(ctx, os.Stdin, stdout)

	if n := helper.Tasks().StopAll(); n > 0 {
		logger.Printf("Requested stop for %d background tasks", n)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Println("Server exiting")
	return nil
}
