package jobs

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/pkg/logs"
)

func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Periodic lifecycle jobs",
		Long: `Runs the deferred booking work: sweeping abandoned requests (sweep),
dispatching due reminders (reminders) and completing elapsed sessions (complete).`,
	}

	cmd.AddCommand(NewStartCommand())
	cmd.AddCommand(NewRunOnceCommand())

	return cmd
}

// loadConfig reads the config and installs the process logger. The returned
// func flushes buffered log output.
func loadConfig(cmd *cobra.Command) (*config.Config, func(), error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}
	logger, flush := logs.New(cfg)
	slog.SetDefault(logger)
	return cfg, flush, nil
}
