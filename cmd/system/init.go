package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configured databases if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			fmt.Println("Initializing databases...")
			created, err := database.InitializeDatabases(context.Background(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize databases: %w", err)
			}
			if len(created) == 0 {
				fmt.Println("All databases already exist.")
				return nil
			}
			fmt.Printf("Created: %s\n", strings.Join(created, ", "))
			return nil
		},
	}

	return cmd
}
