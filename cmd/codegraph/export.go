package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dusk-indust/codegraph/internal/export"
)

func runExport(args []string) error {
	var c commonFlags
	var out string
	var unresolvedLimit int
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	c.register(fs)
	fs.StringVar(&out, "out", "", "output file (default: stdout)")
	fs.IntVar(&unresolvedLimit, "unresolved-limit", 0, "cap on exported unresolved references (default: 1000)")
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

	report, err := export.BuildReport(context.Background(), store, cfg.Repository, export.ReportOptions{
		UnresolvedLimit: unresolvedLimit,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.WriteJSON(w, report)
}
