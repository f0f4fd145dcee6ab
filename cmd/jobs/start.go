package jobs

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/rookie_backend/internal/app"
)

func NewStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the embedded job scheduler until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer flush()

			fx.New(
				fx.Supply(cfg),
				app.InfraModule,
				app.ServiceModule,
				app.WorkerModule,
				app.JobsModule,
				app.SchedulerModule,
				fx.StopTimeout(shutdownTimeout),
				fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
			).Run()
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for running jobs")

	return cmd
}
