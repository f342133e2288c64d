package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zipfx/zipfx/cmd/flags"
)

var RootCmd = &cobra.Command{
	Use:   "zipfx",
	Short: "An archive manager for zip, 7z, rar, tar, iso and single file compressors.",
	Long: `zipfx opens archives as sessions, browses and edits them
without unpacking, and serves the same operations over http.`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flags.DataDir, "data", "data", "data folder")
	RootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file, <data>/config.json when empty")
	RootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "start with debug mode")
	RootCmd.PersistentFlags().BoolVar(&flags.LogStd, "log-std", false, "force to log to std")
}
