// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	earthplugin "github.com/buke/esbuild-plugin-earth-go"
	"github.com/evanw/esbuild/pkg/api"
)

// PluginOptions returns the earth plugin options of the project.
func (p *Project) PluginOptions(command earthplugin.Command, logger *slog.Logger) []earthplugin.OptionFunc {
	opts := []earthplugin.OptionFunc{
		earthplugin.WithCommand(command),
		earthplugin.WithOutDir(p.OutDir),
	}
	if logger != nil {
		opts = append(opts, earthplugin.WithLogger(logger))
	}

	if p.UseMars3D {
		opts = append(opts, earthplugin.WithMars3D(p.Cesium, p.Mars3D))
	} else {
		opts = append(opts, earthplugin.WithCesium(p.Cesium))
	}

	if p.Base != nil {
		opts = append(opts, earthplugin.WithBase(*p.Base))
	}
	if p.CDNBase != "" {
		opts = append(opts, earthplugin.WithCDNBase(p.CDNBase))
	}
	if p.Html.Source != "" {
		opts = append(opts, earthplugin.WithIndexHtmlOptions(earthplugin.IndexHtmlOptions{
			SourceFile:      p.Html.Source,
			OutFile:         p.Html.Out,
			RemoveTagXPaths: p.Html.RemoveTags,
		}))
	}
	if len(p.Copy) > 0 {
		opts = append(opts, earthplugin.WithOnEndProcessor(earthplugin.SimpleCopy(p.Copy)))
	}
	return opts
}

// BuildOptions returns the esbuild options of the project. Production builds
// are minified and hash their output names.
func (p *Project) BuildOptions(production bool, plugins ...api.Plugin) api.BuildOptions {
	buildOptions := api.BuildOptions{
		AbsWorkingDir: p.Root,
		EntryPoints:   p.EntryPoints,
		Outdir:        p.OutDir,
		Bundle:        true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Target:        api.ES2020,
		Loader: map[string]api.Loader{
			".png":  api.LoaderFile,
			".jpg":  api.LoaderFile,
			".svg":  api.LoaderFile,
			".glb":  api.LoaderFile,
			".json": api.LoaderJSON,
		},
		Define:   p.Define,
		Metafile: true,
		Write:    true,
		LogLevel: api.LogLevelSilent,
		Plugins:  plugins,
	}

	if production {
		buildOptions.MinifyWhitespace = true
		buildOptions.MinifyIdentifiers = true
		buildOptions.MinifySyntax = true
		buildOptions.EntryNames = "[dir]/[name]-[hash]"
		buildOptions.Sourcemap = api.SourceMapLinked
	} else {
		buildOptions.Sourcemap = api.SourceMapInline
	}

	if _, err := os.Stat(filepath.Join(p.Root, "tsconfig.json")); err == nil {
		buildOptions.Tsconfig = "tsconfig.json"
	}
	return buildOptions
}
