package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/rookie_backend/cmd/http"
	jobscmd "github.com/Alijeyrad/rookie_backend/cmd/jobs"
	systemcmd "github.com/Alijeyrad/rookie_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "rookie",
	Short: "Rookie connects learners with experts for paid one-to-one sessions.",
	Long: `Rookie is the backend of a coaching marketplace. Experts publish
availability, learners request sessions, payments are authorized up front and
captured when the expert accepts, and every confirmed session gets a video
meeting and reminders.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	// Attach top-level command trees.
	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
	rootCmd.AddCommand(jobscmd.NewJobsCommand())
}
