package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/codegraph/internal/mcptools"
)

func runServeMCP(args []string) error {
	var c commonFlags
	var httpAddr string
	fs := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&httpAddr, "http", "", "serve over HTTP on this address instead of stdio")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, log, err := c.setup()
	if err != nil {
		return err
	}

	store, err := openStore(c.storePath(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	svc := mcptools.NewCodeGraphService(store, cfg, log)
	if httpAddr != "" {
		log.Info("serving MCP over HTTP", "addr", httpAddr)
		return mcptools.RunHTTP(ctx, svc, httpAddr)
	}
	return mcptools.RunStdio(ctx, svc)
}
