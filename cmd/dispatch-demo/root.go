package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Swind/go-dispatch-queue/core"
)

type rootOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dispatch-demo",
		Short:         "Exercise a serial dispatch queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log queue events to stderr")

	cmd.AddCommand(newRunCommand(opts), newConfigCommand())
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func newRunCommand(root *rootOptions) *cobra.Command {
	sc := defaultScenario()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo scenario against a queue configured from DISPATCH_QUEUE_* variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(root.verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			undo := zap.ReplaceGlobals(logger)
			defer undo()

			cfg, err := core.LoadConfig()
			if err != nil {
				return err
			}
			q, err := core.NewDispatchQueue(
				core.WithConfig(cfg),
				core.WithLogger(core.NewZapLogger(logger.Named("dispatchqueue"))),
			)
			if err != nil {
				return err
			}
			defer q.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return sc.run(ctx, q, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&sc.timers, "timers", sc.timers, "number of staggered timers")
	flags.DurationVar(&sc.timerStep, "timer-step", sc.timerStep, "delay between staggered timers")
	flags.DurationVar(&sc.mainSleep, "main-sleep", sc.mainSleep, "how long the caller sleeps while timers fire")
	flags.IntVar(&sc.boundCount, "bound-count", sc.boundCount, "tasks in the first counter pass")
	flags.DurationVar(&sc.syncSleep, "sync-sleep", sc.syncSleep, "how long the Sync task sleeps")
	flags.IntVar(&sc.paramCount, "param-count", sc.paramCount, "tasks in the second counter pass")
	return cmd
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the queue configuration read from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := core.LoadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:             %s\n", cfg.Name)
			fmt.Fprintf(out, "max pending:      %d\n", cfg.MaxPending)
			fmt.Fprintf(out, "overflow:         %s\n", cfg.Overflow)
			fmt.Fprintf(out, "history capacity: %d\n", cfg.HistoryCapacity)
			return nil
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
