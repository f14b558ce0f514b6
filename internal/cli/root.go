// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the earth command line tool.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/buke/esbuild-plugin-earth-go/internal/colorlog"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	rootDir    string
	configFile string
	verbose    bool
}

// NewRootCommand returns the earth command with its build and dev subcommands.
// Log lines go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}
	level := new(slog.LevelVar)
	logger := slog.New(colorlog.NewHandler(stderr, level))

	rootCmd := &cobra.Command{
		Use:   "earth",
		Short: "Bundles web apps that use Cesium or Mars3D",
		Long: `earth builds and serves web apps that use the Cesium globe, optionally with Mars3D.
It bundles the app with esbuild and delivers the globe libraries through a script tag,
the bundle, or a CDN, depending on the project configuration (earth.toml, earth.json,
earth.jsonc, earth.config.js or earth.config.ts).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVarP(&flags.rootDir, "root", "r", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "configuration file, detected in the project root when empty")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output")

	rootCmd.AddCommand(newBuildCommand(flags, logger))
	rootCmd.AddCommand(newDevCommand(flags, logger))
	return rootCmd
}

// Execute runs the earth command until ctx is canceled or the command returns.
func Execute(ctx context.Context) int {
	if err := NewRootCommand(os.Stderr).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
