package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/wildlife-go/internal/app"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// Command runs the feed poller, the dashboard API and the metrics endpoint.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the feed and serve the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := app.NewServer(settings)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := srv.Close(); cerr != nil {
					logger.Global().Module("serve").Error("shutdown failed", logger.Error(cerr))
				}
			}()
			return srv.Run(cmd.Context())
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Listen address of the dashboard API (default from config)")
	cmd.Flags().Duration("poll-interval", 0, "Feed poll interval (default from config)")

	bindings := map[string]string{
		"webserver.listen": "listen",
		"poller.interval":  "poll-interval",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
