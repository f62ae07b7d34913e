/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejoacosta74/shrimpy-stream/internal/config"
	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shrimpy-stream",
	Short: "Stream Shrimpy market data over a persistent websocket",
	Long: `shrimpy-stream keeps one websocket open to the Shrimpy market-data feed,
multiplexes orderbook, trade and bbo subscriptions over it, answers heartbeats and
reconnects with a fresh token when the connection drops.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// loadConfig reads the config and binds the root log flags plus the given
// key -> flag name pairs of cmd.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	opts := []config.LoadOption{
		config.WithFlag("log.level", cmd.Flag("log-level")),
		config.WithFlag("log.format", cmd.Flag("log-format")),
	}
	for key, name := range bindings {
		opts = append(opts, config.WithFlag(key, cmd.Flag(name)))
	}

	cfg, err := config.Load(cfgFile, opts...)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	if err := logger.SetFormat(cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
