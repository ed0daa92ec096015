package edge

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/wildlife-go/internal/app"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// Command runs the edge node detection loop.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Run the edge node detection loop",
		Long:  "Sample the motion, distance and light sensors, classify each motion event and relay it to the feed store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			node, err := app.NewEdge(settings)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := node.Close(); cerr != nil {
					logger.Global().Module("edge").Warn("failed to release sensors", logger.Error(cerr))
				}
			}()
			return node.Run(cmd.Context())
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Bool("simulate", false, "Use simulated sensors instead of GPIO hardware")
	cmd.Flags().Duration("interval", 0, "Sleep between detection cycles (default from config)")

	if err := viper.BindPFlag("edge.simulate", cmd.Flags().Lookup("simulate")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("edge.cycleinterval", cmd.Flags().Lookup("interval")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
