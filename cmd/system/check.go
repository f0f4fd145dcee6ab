package system

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/rookie_backend/config"
	"github.com/Alijeyrad/rookie_backend/internal/service/booking"
	"github.com/Alijeyrad/rookie_backend/pkg/database"
)

func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report bookings that break data integrity rules",
		Long: `Lists bookings whose expert differs from the owner of their slot and
confirmed bookings without a session. Exits non-zero when any are found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			db, err := database.NewGorm(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close(db)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			// The integrity check only reads, so no external clients are wired.
			issues, err := booking.New(booking.Deps{DB: db, Config: cfg.Booking}).CheckIntegrity(ctx)
			if err != nil {
				return fmt.Errorf("integrity check failed: %w", err)
			}

			if len(issues) == 0 {
				fmt.Println("No integrity issues found.")
				return nil
			}
			for _, is := range issues {
				fmt.Printf("%s\t%s\n", is.BookingID, is.Problem)
			}
			return fmt.Errorf("%d integrity issue(s) found", len(issues))
		},
	}

	return cmd
}
