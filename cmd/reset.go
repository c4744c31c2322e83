package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/database"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored session tokens",
	Long: `This command deletes every durable session record, forcing all users to
log in again. Use it after rotating the backend token secret.`,
	Run: reset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func reset(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	removed, err := db.DeleteAllSessions(cmd.Context())
	if err != nil {
		log.Fatalf("failed to delete session records: %v", err)
	}
	log.Info("Deleted all session records", "count", removed)
}
