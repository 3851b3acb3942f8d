package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dusk-indust/codegraph/internal/export"
)

func runDiagram(args []string) error {
	var c commonFlags
	fs := flag.NewFlagSet("diagram", flag.ContinueOnError)
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := c.setup()
	if err != nil {
		return err
	}

	store, err := openStore(c.storePath(cfg))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	mermaid, err := export.GenerateMermaid(context.Background(), store, cfg.Repository)
	if err != nil {
		return err
	}
	fmt.Print(mermaid)
	return nil
}
