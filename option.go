// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
)

// Command tells the plugin which lifecycle it runs under.
type Command int

const (
	CommandAuto  Command = iota // derive from import.meta.env.PROD / MODE in Define
	CommandBuild                // production build
	CommandServe                // dev server
)

// DefaultCDNBase is the CDN packages are loaded from in BuildCDN mode.
const DefaultCDNBase = "https://unpkg.com"

// OnStartProcessor is a function type for processing logic before the build starts.
// Receives the esbuild BuildOptions as input and can perform pre-build initialization,
// configuration validation, or environment setup.
// Returns an error if the processing fails, which will abort the build.
type OnStartProcessor func(buildOptions *api.BuildOptions) error

// OnEndProcessor is a function type for processing logic after the build ends.
// Receives the BuildResult and BuildOptions as input and can perform post-build processing,
// asset manipulation, file copying, or result analysis.
// Returns an error if the processing fails.
type OnEndProcessor func(result *api.BuildResult, buildOptions *api.BuildOptions) error

// OnDisposeProcessor is a function type for cleanup logic after the build is disposed.
// Note: Dispose processors should not return errors as cleanup should be best-effort.
type OnDisposeProcessor func(buildOptions *api.BuildOptions)

// IndexHtmlProcessor is a function type for processing HTML files after build.
// Receives the HTML document node, BuildResult, the build context of the invocation
// and the PluginBuild. Can modify the HTML DOM, inject scripts/styles, or perform
// other HTML transformations.
type IndexHtmlProcessor func(doc *html.Node, result *api.BuildResult, buildCtx *BuildContext, build *api.PluginBuild) error

// IndexHtmlOptions holds configuration options for HTML file processing.
type IndexHtmlOptions struct {
	SourceFile          string               // Source HTML file path to process
	OutFile             string               // Output HTML file path after processing
	RemoveTagXPaths     []string             // XPath expressions for removing specific HTML nodes
	IndexHtmlProcessors []IndexHtmlProcessor // Custom processors, replacing the default chain
}

// Options holds all plugin configuration and processor chains.
type Options struct {
	name             string           // Plugin name for identification
	targets          []TargetInput    // Libraries to integrate
	command          Command          // Build or serve
	basePath         *string          // Project base path, nil when not configured
	outDir           string           // Output directory override
	cdnBase          string           // CDN root for BuildCDN mode
	indexHtmlOptions IndexHtmlOptions // HTML processing configuration
	copier           Copier           // Copies artifact trees in build modes

	onStartProcessors   []OnStartProcessor   // Executed before build starts
	onEndProcessors     []OnEndProcessor     // Executed after assets and html are done
	onDisposeProcessors []OnDisposeProcessor // Executed during cleanup

	logger *slog.Logger // Logger for plugin messages
}

// OptionFunc is a function type for configuring plugin options using the functional options pattern.
type OptionFunc func(*Options)

// newOptions creates a new options struct with sensible default values.
func newOptions() *Options {
	return &Options{
		name:    "earth-plugin",
		cdnBase: DefaultCDNBase,
		copier:  NewFSCopier(),
		logger:  slog.Default(),
	}
}

// WithName sets a custom plugin name for identification in esbuild logs and error messages.
func WithName(name string) OptionFunc {
	return func(opts *Options) {
		opts.name = name
	}
}

// WithTarget adds a library to integrate. Targets may be given in any order;
// renderers are always handled before toolkits.
func WithTarget(preset Preset, targetOptions TargetOptions) OptionFunc {
	return func(opts *Options) {
		opts.targets = append(opts.targets, TargetInput{Preset: preset, Options: targetOptions})
	}
}

// WithCesium integrates the Cesium renderer.
func WithCesium(targetOptions TargetOptions) OptionFunc {
	return WithTarget(CesiumPreset, targetOptions)
}

// WithMars3D integrates the Mars3D toolkit on top of the mars3d-cesium renderer.
// Both targets share the delivery options given here unless overridden per target.
func WithMars3D(cesiumOptions, mars3dOptions TargetOptions) OptionFunc {
	return func(opts *Options) {
		WithTarget(Mars3DCesiumPreset, cesiumOptions)(opts)
		WithTarget(Mars3DPreset, mars3dOptions)(opts)
	}
}

// WithCommand forces the build or serve lifecycle instead of deriving it from Define.
func WithCommand(command Command) OptionFunc {
	return func(opts *Options) {
		opts.command = command
	}
}

// WithBase sets the project base path. An empty base means a relative deployment ("./").
func WithBase(base string) OptionFunc {
	return func(opts *Options) {
		opts.basePath = &base
	}
}

// WithOutDir sets the output directory assets are copied into.
// Defaults to esbuild's Outdir, then "dist".
func WithOutDir(outDir string) OptionFunc {
	return func(opts *Options) {
		opts.outDir = outDir
	}
}

// WithCDNBase sets the CDN root used in BuildCDN mode.
func WithCDNBase(cdnBase string) OptionFunc {
	return func(opts *Options) {
		opts.cdnBase = cdnBase
	}
}

// WithCopier replaces the file-copy collaborator used during bundle finalization.
func WithCopier(copier Copier) OptionFunc {
	return func(opts *Options) {
		opts.copier = copier
	}
}

// WithIndexHtmlOptions sets the HTML processing options.
func WithIndexHtmlOptions(indexHtmlOptions IndexHtmlOptions) OptionFunc {
	return func(opts *Options) {
		opts.indexHtmlOptions = indexHtmlOptions
	}
}

// WithOnStartProcessor adds an OnStartProcessor to the processor chain.
func WithOnStartProcessor(processor OnStartProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onStartProcessors = append(opts.onStartProcessors, processor)
	}
}

// WithOnEndProcessor adds an OnEndProcessor to the processor chain.
// End processors run after the artifacts are copied and the html is written.
func WithOnEndProcessor(processor OnEndProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onEndProcessors = append(opts.onEndProcessors, processor)
	}
}

// WithOnDisposeProcessor adds an OnDisposeProcessor to the processor chain.
func WithOnDisposeProcessor(processor OnDisposeProcessor) OptionFunc {
	return func(opts *Options) {
		opts.onDisposeProcessors = append(opts.onDisposeProcessors, processor)
	}
}

// WithLogger sets a custom logger for the plugin.
// Defaults to slog.Default() if not specified.
func WithLogger(logger *slog.Logger) OptionFunc {
	return func(opts *Options) {
		opts.logger = logger
	}
}

// parseImportMetaEnv parses import.meta.env values from esbuild Define map.
// Supports both individual env variable definitions and nested env object definitions.
func parseImportMetaEnv(defineMap map[string]string, key string) (any, bool) {
	if v, ok := defineMap[fmt.Sprintf("import.meta.env.%s", key)]; ok {
		var value interface{}
		json.Unmarshal([]byte(v), &value)
		return value, true
	}

	if v, ok := defineMap["import.meta.env"]; ok {
		var value interface{}
		json.Unmarshal([]byte(v), &value)
		if envMap, ok := value.(map[string]interface{}); ok {
			if v, ok := envMap[key]; ok {
				return v, true
			}
		}
	}

	return nil, false
}

// normalizeEsbuildOptions merges the values derived for this invocation into esbuild's options.
// User supplied defines always win.
func normalizeEsbuildOptions(initialOptions *api.BuildOptions, buildCtx *BuildContext) {
	if initialOptions.Define == nil {
		initialOptions.Define = make(map[string]string)
	}

	if _, ok := initialOptions.Define["import.meta.env"]; !ok {
		initialOptions.Define["import.meta.env"] = "{}"
	}

	mode := "production"
	if !buildCtx.IsProduction {
		mode = "development"
	}
	if _, exists := parseImportMetaEnv(initialOptions.Define, "MODE"); !exists {
		initialOptions.Define["import.meta.env.MODE"] = jsString(mode)
	}
	if _, exists := parseImportMetaEnv(initialOptions.Define, "PROD"); !exists {
		initialOptions.Define["import.meta.env.PROD"] = strconv.FormatBool(buildCtx.IsProduction)
	}
	if _, exists := parseImportMetaEnv(initialOptions.Define, "DEV"); !exists {
		initialOptions.Define["import.meta.env.DEV"] = strconv.FormatBool(!buildCtx.IsProduction)
	}
	if _, exists := parseImportMetaEnv(initialOptions.Define, "BASE_URL"); !exists {
		initialOptions.Define["import.meta.env.BASE_URL"] = jsString(buildCtx.BasePath)
	}

	// Libraries locate their workers through these globals at runtime
	for _, t := range buildCtx.Targets {
		if t.Preset.BaseURLGlobal == "" {
			continue
		}
		if _, ok := initialOptions.Define[t.Preset.BaseURLGlobal]; !ok {
			initialOptions.Define[t.Preset.BaseURLGlobal] = jsString(t.BaseURL)
		}
	}

	// The entry-output html processor reads the metafile
	initialOptions.Metafile = true
}

// jsString encodes s as a JavaScript string literal for Define.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// SimpleCopy returns an OnEndProcessor that copies files from fileMap after build completion.
// Each key-value pair in fileMap represents srcFile -> outFile mapping.
//
// Example usage:
//
//	processor := SimpleCopy(map[string]string{
//	  "public/favicon.ico": "dist/favicon.ico",
//	})
func SimpleCopy(fileMap map[string]string) OnEndProcessor {
	return func(result *api.BuildResult, initialOptions *api.BuildOptions) error {
		for srcFile, outFile := range fileMap {
			if initialOptions.AbsWorkingDir != "" {
				if !filepath.IsAbs(srcFile) {
					srcFile = filepath.Join(initialOptions.AbsWorkingDir, srcFile)
				}
				if !filepath.IsAbs(outFile) {
					outFile = filepath.Join(initialOptions.AbsWorkingDir, outFile)
				}
			}
			if _, err := os.Stat(srcFile); err != nil {
				return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
			}
			if err := copyFile(srcFile, outFile); err != nil {
				return err
			}
		}
		return nil
	}
}
