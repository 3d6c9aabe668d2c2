package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/crawlersvc/internal/server"
)

// newCrawlCmd crawls one URL in the foreground and prints the job ID.
func newCrawlCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a URL and wait for the whole tree to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(app *server.App) error {
				jobID, err := app.Crawl(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), jobID)
				return err
			})
		},
	}
}
