package cli

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"gradekey/internal/config"
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(exportCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("db-backend", config.BackendPostgres, "Storage backend: memory or postgres or sqlite or mysql")
	rootCmd.PersistentFlags().String("database-url", "", "Database connection string (file path for sqlite)")
	rootCmd.PersistentFlags().String("overflow-policy", "worst", "Grade for scores outside every boundary: worst or best")
	rootCmd.PersistentFlags().String("color", "auto", "Colored table output: auto or yes or no")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	if err := vp.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.Fatalf("bind root flags: %v", err)
	}

	serveCmd.Flags().String("listen-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().Int("regrade-workers", 2, "Number of background regrade workers (0 disables them)")
	serveCmd.Flags().Duration("poll-interval", time.Second, "How often idle workers poll for queued regrade jobs")
	serveCmd.Flags().StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")
	serveCmd.Flags().Bool("auto-migrate", true, "Apply pending schema migrations before serving")
	if err := vp.BindPFlags(serveCmd.Flags()); err != nil {
		log.Fatalf("bind serve flags: %v", err)
	}

	migrateCmd.Flags().Int64("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")

	historyCmd.Flags().String("format", "text", "Output format: text or table")

	impactCmd.Flags().StringP("boundaries", "b", "", "JSON file with the proposed grade boundaries")
	impactCmd.Flags().Bool("apply", false, "Store the new key, record the change and regrade the exam")
	impactCmd.Flags().String("reason", "", "Reason recorded in the change history (with --apply)")
	impactCmd.Flags().String("changed-by", "", "Author recorded in the change history (with --apply)")
	_ = impactCmd.MarkFlagRequired("boundaries")

	exportCmd.Flags().StringP("output", "o", "", "Parquet file to write (default <examId>.parquet)")
}
