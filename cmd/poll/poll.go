package poll

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/wildlife-go/internal/app"
	"github.com/tphakala/wildlife-go/internal/conf"
)

// Command runs a single reconcile cycle and prints what it stored.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Fetch the feed once and ingest new records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := app.NewServer(settings)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			res, err := srv.PollOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("polled %d records: %d inserted, %d skipped, %d malformed, %d conflicts, last entry id %d\n",
				res.Polled, res.Inserted, res.Skipped, res.Malformed, res.Conflicts, res.LastEntryID)
			return nil
		},
	}
}
