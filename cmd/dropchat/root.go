package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bjarneo/dropchat/internal/config"
	"github.com/bjarneo/dropchat/internal/logging"
	"github.com/bjarneo/dropchat/internal/ui"
)

type rootOptions struct {
	configPath string
	identity   string
	v          *viper.Viper
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&rootOptions{v: viper.New()})
}

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dropchat",
		Short:         "Send media files to people in a chat room",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.v, opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return runUI(opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/dropchat/config.toml)")
	flags.StringVar(&opts.identity, "identity", "", "name to join with (default: cached or prompted)")
	flags.String("server-url", "", "messaging server websocket URL")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-file", "", "log file used by the interactive UI")
	_ = opts.v.BindPFlag(config.KeyServerURL, flags.Lookup("server-url"))
	_ = opts.v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = opts.v.BindPFlag(config.KeyLogFile, flags.Lookup("log-file"))

	rootCmd.AddCommand(
		newSendCmd(opts),
		newWatchCmd(opts),
	)
	return rootCmd
}

func runUI(opts *rootOptions) error {
	level, err := logging.Parse(opts.cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, closer, err := logging.File(opts.cfg.LogFile, level)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info().Str("server", opts.cfg.ServerURL).Msg("[ui] starting")
	if err := ui.Run(ui.Options{
		Config:   opts.cfg,
		Identity: opts.identity,
		Cache:    config.NewIdentityCache(opts.cfg.IdentityCache),
		Logger:   logger,
	}); err != nil {
		return fmt.Errorf("interactive client: %w", err)
	}
	return nil
}
