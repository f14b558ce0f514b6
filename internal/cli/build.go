// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	earthplugin "github.com/buke/esbuild-plugin-earth-go"
	"github.com/buke/esbuild-plugin-earth-go/config"
	"github.com/buke/esbuild-plugin-earth-go/internal/colorlog"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"
)

func newBuildCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Builds the app for production",
		Long: `The build command bundles the app for deployment. It performs the following steps:
1. Locates and parses the earth configuration file.
2. Bundles the entry points with esbuild.
3. Copies the globe library assets next to the bundle, unless they come from a CDN.
4. Writes the index html referencing the bundle and the library assets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.ErrOrStderr(), flags, logger)
		},
	}
}

func runBuild(w io.Writer, flags *rootFlags, logger *slog.Logger) error {
	project, err := loadProject(flags, logger)
	if err != nil {
		return err
	}

	integration, err := earthplugin.New(project.PluginOptions(earthplugin.CommandBuild, logger)...)
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info("Running `earth build`...", "root", project.Root)

	result := api.Build(project.BuildOptions(true, integration.Plugin()))
	logMessages(logger, result.Warnings, result.Errors)
	if len(result.Errors) > 0 {
		return fmt.Errorf("build failed with %d error(s)", len(result.Errors))
	}

	colorlog.Println(w, colorlog.Success, fmt.Sprintf("✓ Completed `earth build` in %s", time.Since(start).Round(time.Millisecond)))
	logger.Debug("Wrote build output", "outDir", project.OutDir)
	return nil
}

func loadProject(flags *rootFlags, logger *slog.Logger) (*config.Project, error) {
	project, err := config.Load(flags.rootDir, config.WithFile(flags.configFile), config.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if len(project.EntryPoints) == 0 {
		return nil, errors.New("no entry points: set entry_points or add src/main.ts")
	}
	if project.File != "" {
		logger.Debug("Loaded configuration", "file", project.File)
	}
	return project, nil
}

func logMessages(logger *slog.Logger, warnings, errs []api.Message) {
	for _, msg := range warnings {
		logger.Warn(msg.Text, location(msg)...)
	}
	for _, msg := range errs {
		logger.Error(msg.Text, location(msg)...)
	}
}

func location(msg api.Message) []any {
	var attrs []any
	if msg.PluginName != "" {
		attrs = append(attrs, "plugin", msg.PluginName)
	}
	if msg.Location != nil {
		attrs = append(attrs, "file", fmt.Sprintf("%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column))
	}
	return attrs
}
