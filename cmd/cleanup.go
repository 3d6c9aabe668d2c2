package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/crawlersvc/internal/server"
)

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge the ledger and apply result retention once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				return app.Maintain(cmd.Context())
			})
		},
	}
}
