package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"continuity.org/internal/migrate"
	"continuity.org/internal/obs"
	"continuity.org/internal/store/pg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		dsn     string
		dir     string
		seeds   string
		timeout time.Duration
	)
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dsn, "dsn", os.Getenv("CONTINUITY_PG_DSN"), "PostgreSQL DSN (default $CONTINUITY_PG_DSN)")
	flagSet.StringVar(&dir, "migrations", "", "read migrations from this directory instead of the embedded schema")
	flagSet.StringVar(&seeds, "seeds", "", "read seeds from this directory instead of the embedded seeds")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if dsn == "" {
		return errors.New("missing DSN: provide via --dsn or CONTINUITY_PG_DSN")
	}
	if flagSet.NArg() == 0 {
		return errors.New("usage: migrate [up|down|seed|status]")
	}

	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := pg.Open(dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	var schemaFS, seedFS fs.FS = migrate.Schema(), migrate.Seeds()
	if dir != "" {
		schemaFS = os.DirFS(dir)
	}
	if seeds != "" {
		seedFS = os.DirFS(seeds)
	}
	mgr := migrate.NewManager(store.DB(), schemaFS, seedFS)

	cmd := flagSet.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd, err)
	}
	logger.Info("migrate complete", zap.String("command", cmd))
	return nil
}
