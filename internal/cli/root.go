// Package cli implements the tarball command line.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/tarball/internal/config"
)

var (
	rootConfig = config.NewRoot()
	logger     = slog.New(slog.DiscardHandler)
)

// rootCmd represents the tarball command.
var rootCmd = &cobra.Command{
	Use:               "tarball",
	Short:             "Create, extract, and inspect ustar archives",
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		rootConfig.LogLevel = viper.GetString("log-level")
		rootConfig.NoProgress = viper.GetBool("no-progress")

		level, err := rootConfig.Level()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	},
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

func init() {
	viper.SetEnvPrefix("TARBALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootConfig.LogLevel, "log-level", rootConfig.LogLevel, "log level: debug, info, warn, or error")
	flags.BoolVar(&rootConfig.NoProgress, "no-progress", rootConfig.NoProgress, "disable progress bars")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listCmd)
}
