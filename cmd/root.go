// Package cmd wires the wildlife-go command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/wildlife-go/cmd/edge"
	"github.com/tphakala/wildlife-go/cmd/notify"
	"github.com/tphakala/wildlife-go/cmd/poll"
	"github.com/tphakala/wildlife-go/cmd/sendtest"
	"github.com/tphakala/wildlife-go/cmd/serve"
	"github.com/tphakala/wildlife-go/internal/buildinfo"
	"github.com/tphakala/wildlife-go/internal/conf"
	"github.com/tphakala/wildlife-go/internal/errors"
	"github.com/tphakala/wildlife-go/internal/logger"
)

// RootCommand creates the root command. Settings are loaded once flags are
// parsed, so subcommands read the populated struct inside RunE.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "wildlife",
		Short:         "Wildlife edge node and sighting dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("bind debug flag: %v", err))
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(info.String())
		},
	}

	rootCmd.AddCommand(
		edge.Command(settings),
		serve.Command(settings),
		poll.Command(settings),
		sendtest.Command(settings),
		notify.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if configFile != "" {
			conf.SetConfigFile(configFile)
		}
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, info)
	}

	return rootCmd
}

// initialize installs the central logger and error reporting
func initialize(settings *conf.Settings, info *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	info.NodeID = settings.Main.NodeID
	log := logger.Global().Module("main")
	log.Info("starting wildlife-go",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("node_id", info.GetNodeID()))

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, info.Release()); err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		}
	}
	return nil
}
