package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history <keyId>",
	Short:   "Print the change history of a grading key",
	Args:    cobra.ExactArgs(1),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "table" {
			return fmt.Errorf("unknown format %q (want text or table)", format)
		}
		be, err := openBackend(rootCtx, cfg)
		if err != nil {
			return err
		}
		defer be.close()
		engine, _ := newServices(be, cfg)

		out := cmd.OutOrStdout()
		if format == "text" {
			report, err := engine.ExportChangeHistory(rootCtx, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, report)
			return err
		}
		hist, err := be.audit.History(rootCtx, args[0])
		if err != nil {
			return err
		}
		return writeHistoryTable(out, engine, hist, reasonWidth())
	},
}
