package sendtest

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/wildlife-go/internal/app"
	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/edge"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/observability"
)

// Command publishes synthetic classified events through the relay so the
// server side can be tried without an edge node.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sendtest",
		Short: "Send random test events to the feed store",
		Long: `Send random classified events through the relay client.

About one event in five is a false positive. The default interval keeps
writes above the feed store's one-per-15-seconds ceiling.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return errors.ValidationError("--count must be at least 1")
			}
			m, err := observability.NewMetrics()
			if err != nil {
				return err
			}
			sender := edge.NewTestSender(
				app.NewRelay(settings, m),
				classifier.NewFromSettings(&settings.Classifier, nil),
				nil)

			sum := sender.Run(cmd.Context(), count, interval)
			cmd.Printf("sent %d of %d test events, %d rejected\n", sum.Sent, count, sum.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "Number of events to send")
	cmd.Flags().DurationVar(&interval, "interval", 16*time.Second, "Wait between accepted writes")
	return cmd
}
