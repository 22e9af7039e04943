package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage the schema version of the configured database backend.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  gradekey migrate --db-backend sqlite --database-url grades.db

  # Rollback to the empty schema
  gradekey migrate --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target, _ := cmd.Flags().GetInt64("target-version")
		be, err := openBackend(rootCtx, cfg)
		if err != nil {
			return err
		}
		defer be.close()
		if be.migrate == nil {
			return fmt.Errorf("%s backend has no schema to migrate", cfg.DBBackend)
		}
		return be.migrate(rootCtx, target)
	},
}
