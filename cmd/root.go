// Package cmd provides the process entry point for the mediakeyd daemon.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/connorhough/mediakeyd/internal/bootstrap"
	"github.com/connorhough/mediakeyd/internal/config"
	"github.com/connorhough/mediakeyd/internal/daemon"
	"github.com/connorhough/mediakeyd/internal/holdwatch"
	"github.com/connorhough/mediakeyd/internal/inject"
	"github.com/connorhough/mediakeyd/internal/logging"
	"github.com/connorhough/mediakeyd/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute builds the root command and runs it until ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd creates and returns the root command for mediakeyd
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mediakeyd",
		Short: "Turn long volume key presses into media keys while the screen is off",
		Long: `mediakeyd runs as root, creates a virtual keyboard and watches the hardware
volume keys. Holding volume up or down while the display is off sends media
next or previous.

Every setting has a default; an optional config file looks like this:

` + config.Template(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default locations: $XDG_CONFIG_HOME/mediakeyd/config.yaml or /etc/mediakeyd/config.yaml)")

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "mediakeyd"))
		}
		viper.AddConfigPath("/etc/mediakeyd")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("config loaded", "file", used)
	}

	boot := bootstrap.New(bootstrap.Options{Logger: logger})
	defer boot.Looper().Quit()

	d, err := daemon.Start(ctx, daemon.Options{
		Bootstrap: boot,
		Registry:  daemon.NewRegistry(cfg, logger),
		Inject:    inject.Options{FromSystem: cfg.Inject.FromSystem, Logger: logger},
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, d.Device().String())

	if !cfg.Watch.Enabled {
		slog.Info("volume key watch disabled")
		<-ctx.Done()
		return nil
	}
	w := holdwatch.New(d, holdwatch.Options{
		Dir:           cfg.Watch.InputDir,
		HoldThreshold: cfg.Watch.HoldThreshold,
		Logger:        logger,
	})
	return w.Run(ctx)
}
