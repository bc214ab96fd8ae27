package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config without starting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}
			cfg := loader.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: store=%s queue=%s tables=%s,%s,%s\n",
				cfg.Store.Driver, cfg.Queue.Driver,
				cfg.Store.Tables.Accounts, cfg.Store.Tables.Loans, cfg.Store.Tables.Requests)
			return nil
		},
	}
	return cmd
}
