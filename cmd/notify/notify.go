package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/wildlife-go/internal/classifier"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/datastore"
	"github.com/tphakala/wildlife-go/internal/notification"
)

// Command sends a test alert through the configured notification services
func Command(settings *conf.Settings) *cobra.Command {
	var (
		species  string
		distance float64
		bucket   string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test sighting alert",
		Long: `Send a test alert through the configured shoutrrr services.

Examples:
  wildlife notify --species Lynx --distance 120 --bucket Night`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sp, ok := classifier.NewCatalog(settings.Classifier.Species).ByName(species)
			if !ok {
				return fmt.Errorf("unknown species %q", species)
			}
			n, err := notification.NewNotifier(&settings.Notification, nil)
			if err != nil {
				return err
			}
			if !n.Watches(sp.Name) {
				return fmt.Errorf("species %q is not in notification.species", sp.Name)
			}
			s := datastore.Sighting{
				Motion:           1,
				DistanceCM:       distance,
				SpeciesID:        sp.ID,
				SpeciesName:      sp.Name,
				TimeOfDay:        bucket,
				IsValidDetection: true,
			}
			if err := n.Deliver(cmd.Context(), s); err != nil {
				return err
			}
			cmd.Printf("sent: %s\n", notification.Message(&s))
			return nil
		},
	}

	cmd.Flags().StringVar(&species, "species", "", "Watched species name")
	cmd.Flags().Float64Var(&distance, "distance", 100, "Distance in cm")
	cmd.Flags().StringVar(&bucket, "bucket", "Night", "Time of day label")
	_ = cmd.MarkFlagRequired("species")
	return cmd
}
