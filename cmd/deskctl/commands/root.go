package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deliverydesk/deliverydesk/internal/cache"
	"github.com/deliverydesk/deliverydesk/internal/config"
	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/repository"
)

// app holds the connections opened by the root command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	repo    *repository.Repository
	cache   *cache.Cache
	emitter *events.Emitter
}

var (
	verbose bool
	current *app
)

func Execute() error {
	err := run(context.Background(), newRootCmd())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deskctl",
		Short:         "Operator tooling for DeliveryDesk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			current = a
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(migrateCmd(), userCmd(), reportCmd(), customersCmd())
	return root
}

// run executes root and then releases whatever the pre-run opened. Cobra
// skips post-run hooks when RunE fails, so the close lives here.
func run(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if current != nil {
		closeErr := current.close(ctx)
		current = nil
		if err == nil {
			err = closeErr
		}
	}
	return err
}

func open(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelWarn
	if verbose || strings.EqualFold(cfg.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{MaxConns: 2, MinConns: 0})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	c, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	emitter := events.NewEmitter(logger, nil)
	emitter.AddSink("redis_stream", events.NewStreamPublisher(c.Client()))

	return &app{cfg: cfg, logger: logger, repo: repo, cache: c, emitter: emitter}, nil
}

// close flushes pending audit events before dropping connections.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()

	var err error
	if a.emitter != nil {
		err = a.emitter.Shutdown(ctx)
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
	return err
}
