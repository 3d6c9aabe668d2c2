package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/crawlersvc/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				return app.Run(cmd.Context())
			})
		},
	}
}
