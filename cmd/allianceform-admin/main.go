// Command allianceform-admin provides operator tooling for the notification
// queue and decision records.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andretaki/alliance-form-sub000/config"
	"github.com/andretaki/alliance-form-sub000/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultCommandTimeout = 2 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"stats": {
			name:        "stats",
			description: "Show queue depth, recent sent/failed counts, and store health",
			run:         runStats,
		},
		"drain": {
			name:        "drain",
			description: "Run one drain pass over the due portion of the queue",
			run:         runDrain,
		},
		"cleanup": {
			name:        "cleanup",
			description: "Remove live queue entries older than the retention window",
			run:         runCleanup,
		},
		"show-decision": {
			name:        "show-decision",
			description: "Show the decision record for an application",
			run:         runShowDecision,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: allianceform-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-16s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

// connectServices connects Redis and wires the service container for a command.
func connectServices(cmdCtx *commandContext) (bootstrap.ServiceContainer, func(), error) {
	redisClient, err := bootstrap.ConnectRedis(bootstrap.RedisDeps{
		Config: cmdCtx.Config.Redis,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return bootstrap.ServiceContainer{}, nil, fmt.Errorf("connect redis: %w", err)
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		if cerr := redisClient.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
		return bootstrap.ServiceContainer{}, nil, err
	}

	cleanup := func() {
		if cerr := redisClient.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}
	return services, cleanup, nil
}

func runStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	services, cleanup, err := connectServices(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := services.Queue.Stats(ctx)
	if err != nil {
		return fmt.Errorf("queue stats: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value any
	}{
		{"queue length", stats.QueueLength},
		{"recent sent", stats.RecentSent},
		{"recent failed", stats.RecentFailed},
		{"store healthy", stats.StoreHealthy},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%v\n", row.label, row.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runDrain(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("drain", flag.ContinueOnError)
	batch := fs.Int64("batch", 0, "override the number of jobs pulled in this pass")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	services, cleanup, err := connectServices(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := services.Drainer.Drain(ctx, *batch)
	if err != nil {
		return fmt.Errorf("drain queue: %w", err)
	}

	cmdCtx.Logger.Info("drain pass complete",
		"processed", result.Processed,
		"sent", result.Sent,
		"failed", result.Failed)
	for _, msg := range result.Errors {
		cmdCtx.Logger.Warn("delivery error", "error", msg)
	}
	return nil
}

func runCleanup(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	services, cleanup, err := connectServices(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := services.Queue.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("cleanup queue: %w", err)
	}

	cmdCtx.Logger.Info("cleanup complete", "removed", removed)
	return nil
}

func runShowDecision(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show-decision", flag.ContinueOnError)
	entityID := fs.String("id", "", "application identifier (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entityID == "" {
		return fmt.Errorf("missing required flag: -id")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	services, cleanup, err := connectServices(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	record, err := services.Recorder.Get(ctx, *entityID)
	if err != nil {
		return fmt.Errorf("load decision: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(tw, "entity\t%s\n", record.EntityID); err != nil {
		return err
	}
	if err := writef(tw, "decision\t%s\n", record.Decision); err != nil {
		return err
	}
	if record.ApprovedAmount != nil {
		if err := writef(tw, "approved amount\t%d\n", *record.ApprovedAmount); err != nil {
			return err
		}
	}
	if record.ApprovedTerms != "" {
		if err := writef(tw, "approved terms\t%s\n", record.ApprovedTerms); err != nil {
			return err
		}
	}
	if err := writef(tw, "notified\t%v\n", record.Notified); err != nil {
		return err
	}
	if err := writef(tw, "updated\t%s\n", record.UpdatedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	return tw.Flush()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
