package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pagelens-mcp-server/internal/browser"
	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/jsonrpc"
	"pagelens-mcp-server/internal/logging"
	"pagelens-mcp-server/internal/mcp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the pagelens MCP config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the protocol; logs go to stderr or the configured file.
	logger, logCloser, err := logging.New(logging.Options{
		Level: cfg.Server.LogLevel,
		File:  cfg.Server.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	session := browser.NewSession(cfg.Browser, logger)
	if err := session.Start(ctx); err != nil {
		logger.Fatal("failed to start browser session", "err", err)
	}
	defer session.Shutdown()

	writer := jsonrpc.NewWriter(os.Stdout, logger)
	server := mcp.NewServer(cfg, session, writer, logger)
	loop := jsonrpc.NewLoop(os.Stdin, server, logger)

	logger.Info("pagelens MCP server listening on stdio", "name", cfg.Server.Name, "version", cfg.Server.Version)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("message loop terminated", "err", err)
	}
}
