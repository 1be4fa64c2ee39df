package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/docgraph/internal/domain"
	"github.com/arturoeanton/docgraph/internal/importer"
	"github.com/arturoeanton/docgraph/pkg/config"
)

// ErrImportFailed is returned when at least one import did not complete.
var ErrImportFailed = errors.New("import failed")

func newApp(cfg *config.ClientConfig, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "docgraph",
		Usage: "Import and manage repositories on a DocGraph server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "DocGraph API base URL",
				Value:   cfg.APIURL,
				Sources: cli.EnvVars("DOCGRAPH_API_URL"),
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "delay between import status checks",
				Value: cfg.PollInterval,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "fail imports still running after this long (0 waits forever)",
				Value: cfg.PollTimeout,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelWarn
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import one or more repositories and follow their progress",
				ArgsUsage: "<url> [url...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "detach",
						Usage: "return after submitting without following progress",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return importAction(ctx, cmd, out)
				},
			},
			{
				Name:  "list",
				Usage: "List imported repositories",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listAction(ctx, cmd, out)
				},
			},
			{
				Name:      "sync",
				Usage:     "Re-sync a repository with its remote",
				ArgsUsage: "<repository-id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return syncAction(ctx, cmd, out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a repository",
				ArgsUsage: "<repository-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "skip the confirmation prompt",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return deleteAction(ctx, cmd, out)
				},
			},
		},
	}
}

func newController(cmd *cli.Command, confirmer importer.Confirmer) *importer.Controller {
	client := importer.NewClient(cmd.String("api"), nil)
	return importer.NewController(client, nil, importer.Options{
		PollInterval:    cmd.Duration("interval"),
		MaxPollDuration: cmd.Duration("timeout"),
		Confirmer:       confirmer,
	})
}

func importAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("import: at least one repository URL is required")
	}

	ctrl := newController(cmd, nil)
	defer ctrl.Close()

	printer := newProgressPrinter(out)
	unsubscribe := ctrl.Registry().Subscribe(printer.Update)
	defer unsubscribe()

	var started []string
	var failed int
	for _, raw := range urls {
		job, err := ctrl.StartImport(ctx, raw)
		if err != nil {
			fmt.Fprintln(out, styles.Error.Render(fmt.Sprintf("%s: %v", raw, err)))
			failed++
			continue
		}
		started = append(started, job.ID)
	}

	if !cmd.Bool("detach") {
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range started {
			g.Go(func() error { return ctrl.Wait(gctx, id) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, id := range started {
			if job, ok := ctrl.Registry().Job(id); ok && job.Status == domain.ImportStatusFailed {
				failed++
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrImportFailed, failed, len(urls))
	}
	return nil
}

func listAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	ctrl := newController(cmd, nil)
	defer ctrl.Close()

	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, renderRepositories(ctrl.Registry().Snapshot().Repositories))
	return nil
}

func syncAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	id, err := repositoryArg(cmd)
	if err != nil {
		return err
	}
	ctrl := newController(cmd, nil)
	defer ctrl.Close()

	if err := ctrl.Sync(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(out, styles.Success.Render("Sync started for "+id))
	fmt.Fprintln(out, renderRepositories(ctrl.Registry().Snapshot().Repositories))
	return nil
}

func deleteAction(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	id, err := repositoryArg(cmd)
	if err != nil {
		return err
	}
	ctrl := newController(cmd, promptConfirmer(cmd.Bool("yes")))
	defer ctrl.Close()

	err = ctrl.Delete(ctx, id)
	if errors.Is(err, importer.ErrNotConfirmed) {
		fmt.Fprintln(out, styles.Muted.Render("Cancelled"))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, styles.Success.Render("Deleted "+id))
	return nil
}

func repositoryArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("%s: exactly one repository id is required", cmd.Name)
	}
	return cmd.Args().First(), nil
}
