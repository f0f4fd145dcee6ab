package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/rookie_backend/internal/app"
	"github.com/Alijeyrad/rookie_backend/internal/jobs"
)

func NewRunOnceCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "run-once <job>",
		Short:     "Run one job now, for use from an external cron",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.JobSweep, jobs.JobReminders, jobs.JobComplete},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer flush()

			var runner *jobs.Runner
			fxApp := fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				app.JobsModule,
				fx.Populate(&runner),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			)
			if err := fxApp.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := fxApp.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() { _ = fxApp.Stop(context.Background()) }()

			n, err := runner.RunOnce(ctx, args[0])
			switch {
			case errors.Is(err, jobs.ErrLocked):
				fmt.Printf("%s is already running elsewhere, skipped\n", args[0])
				return nil
			case errors.Is(err, jobs.ErrUnknownJob):
				return fmt.Errorf("%w (available: %s)", err, strings.Join(runner.Names(), ", "))
			case err != nil:
				return err
			}

			fmt.Printf("%s processed %d item(s)\n", args[0], n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum run time")

	return cmd
}
