package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dusk-indust/codegraph/internal/status"
)

func runStatus(args []string) error {
	var c commonFlags
	var sample int
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	c.register(fs)
	fs.IntVar(&sample, "sample", 10, "number of unresolved references to show")
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

	rs, err := status.Get(context.Background(), store, cfg.Repository, sample)
	if err != nil {
		return err
	}
	fmt.Print(status.Format(rs))
	return nil
}
