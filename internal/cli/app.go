package cli

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/config"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/repository"
	"github.com/roach88/lifeplan/internal/usecase"
)

// app is the per-invocation wiring shared by every data command.
type app struct {
	store   *kvstore.Store
	repos   *repository.Repositories
	planner *usecase.Planner
	out     *OutputFormatter
	logger  *slog.Logger
	metrics *prometheus.Registry
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// logger writes text logs to stderr at the configured level; --verbose
// lowers it to debug.
func (opts *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if opts.cfg != nil {
		if l, err := config.ParseLevel(opts.cfg.Log.Level); err == nil {
			level = l
		}
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (opts *RootOptions) open(cmd *cobra.Command) (*app, error) {
	out := opts.formatter(cmd)
	if opts.cfg == nil {
		if err := opts.resolve(cmd); err != nil {
			return nil, out.Fail(WrapExitError(ExitCommandError, "load config", err))
		}
	}
	logger := opts.logger(cmd)

	storeOpts := []kvstore.Option{
		kvstore.WithLogger(logger),
		kvstore.WithDriver(opts.cfg.Database.Driver),
	}
	var reg *prometheus.Registry
	if opts.Verbose {
		reg = prometheus.NewRegistry()
		storeOpts = append(storeOpts, kvstore.WithMetrics(reg))
	}
	s, err := kvstore.Open(opts.cfg.Database.Path, storeOpts...)
	if err != nil {
		return nil, out.Fail(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	out.VerboseLog("Database: %s (%s)", opts.cfg.Database.Path, opts.cfg.Database.Driver)

	repos := repository.New(s, repository.Deps{IDs: opts.IDs, Clock: opts.Clock, Logger: logger})
	return &app{
		store:   s,
		repos:   repos,
		planner: usecase.New(repos, logger),
		out:     out,
		logger:  logger,
		metrics: reg,
	}, nil
}

func (a *app) close() {
	if a.metrics != nil {
		if families, err := a.metrics.Gather(); err == nil {
			for _, mf := range families {
				a.out.VerboseLog("Metric: %s (%d series)", mf.GetName(), len(mf.GetMetric()))
			}
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}

// run opens the database, runs fn and renders its result or error.
func (opts *RootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := fn(ctx, a)
	if err != nil {
		return a.out.Fail(err)
	}
	return a.out.Success(result)
}

