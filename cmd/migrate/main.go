package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/expirians/orders-ms/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

type options struct {
	direction string
	steps     int
	dsn       string
}

func parseOptions(args []string, lookupEnv func(string) (string, bool)) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)

	var opts options
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: ORDERS_POSTGRES_DSN)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		if env, ok := lookupEnv("ORDERS_POSTGRES_DSN"); ok {
			opts.dsn = strings.TrimSpace(env)
		}
	}
	if opts.dsn == "" {
		return options{}, fmt.Errorf("ORDERS_POSTGRES_DSN (or -dsn) is required")
	}

	return opts, nil
}

// execute выполняет выбранную команду и возвращает префикс итоговой
// строки; статус схемы печатается отдельно после любой команды.
func execute(ctx context.Context, store *postgres.Store, opts options) (string, error) {
	switch opts.direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return "", fmt.Errorf("migrate up failed: %w", err)
		}
		return "migrate up ok", nil
	case "down":
		steps := opts.steps
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return "", fmt.Errorf("migrate down failed: %w", err)
		}
		return "migrate down ok", nil
	case "status":
		return "migration status", nil
	default:
		return "", fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	result, err := execute(ctx, store, opts)
	if err != nil {
		fail("%v", err)
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	fmt.Printf("%s: version=%d applied=%d\n", result, version, count)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
