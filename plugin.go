// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrNotSetUp is returned when the build context is read before esbuild ran the plugin's Setup.
var ErrNotSetUp = errors.New("plugin has not been set up by esbuild yet")

// Integration integrates the configured globe libraries into esbuild builds.
// One Integration may drive several build invocations; each Setup derives a
// fresh BuildContext that stays fixed for that invocation.
type Integration struct {
	opts *Options
	cfg  *Config

	mu       sync.RWMutex
	buildCtx *BuildContext
}

// New resolves the options and returns an Integration, or an *InvalidOptionError
// when an option is unsafe. No file is touched before the options are valid.
func New(optsFunc ...OptionFunc) (*Integration, error) {
	opts := newOptions()
	for _, fn := range optsFunc {
		fn(opts)
	}
	if len(opts.targets) == 0 {
		WithCesium(TargetOptions{})(opts)
	}

	cfg, err := Resolve(opts.targets, opts.logger)
	if err != nil {
		return nil, err
	}
	return &Integration{opts: opts, cfg: cfg}, nil
}

// NewPlugin creates the esbuild plugin in one step.
// Invalid options do not panic: the build fails at start with the option error.
//
// Example usage:
//
//	plugin := NewPlugin(
//	  WithCesium(TargetOptions{CDN: &CDNOptions{Version: "1.120.0"}}),
//	  WithIndexHtmlOptions(IndexHtmlOptions{SourceFile: "index.html", OutFile: "dist/index.html"}),
//	)
func NewPlugin(optsFunc ...OptionFunc) api.Plugin {
	integration, err := New(optsFunc...)
	if err != nil {
		opts := newOptions()
		for _, fn := range optsFunc {
			fn(opts)
		}
		return failingPlugin(opts.name, err)
	}
	return integration.Plugin()
}

// failingPlugin reports err as soon as the build starts.
func failingPlugin(name string, err error) api.Plugin {
	return api.Plugin{
		Name: name,
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				return api.OnStartResult{}, err
			})
		},
	}
}

// Config returns the resolved, not yet routed, configuration.
func (i *Integration) Config() *Config {
	return i.cfg
}

// BuildContext returns the context of the current build invocation.
func (i *Integration) BuildContext() (*BuildContext, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.buildCtx == nil {
		return nil, ErrNotSetUp
	}
	return i.buildCtx, nil
}

// InstallDevRoutes mounts the DevServe targets of the current invocation on chain.
func (i *Integration) InstallDevRoutes(chain *MiddlewareChain) error {
	buildCtx, err := i.BuildContext()
	if err != nil {
		return err
	}
	for _, prefix := range InstallDevRoutes(buildCtx, chain) {
		i.opts.logger.Info("Serving library assets", "prefix", prefix, "build", buildCtx.ID)
	}
	return nil
}

// Plugin returns the esbuild plugin.
func (i *Integration) Plugin() api.Plugin {
	opts := i.opts
	return api.Plugin{
		Name: opts.name,
		Setup: func(build api.PluginBuild) {
			// Step 1: Derive the build context once for this invocation.
			// The caller's Define map outlives the invocation, so merges go into a copy.
			build.InitialOptions.Define = maps.Clone(build.InitialOptions.Define)
			buildCtx, err := newBuildContext(opts, i.cfg, build.InitialOptions)
			if err != nil {
				opts.logger.Error("Failed to resolve build context", "error", err)
				build.OnStart(func() (api.OnStartResult, error) {
					return api.OnStartResult{}, err
				})
				return
			}
			i.mu.Lock()
			i.buildCtx = buildCtx
			i.mu.Unlock()

			for _, t := range buildCtx.Targets {
				opts.logger.Debug("Resolved target", "target", t.Preset.Name, "mode", t.DeliveryMode, "baseURL", t.BaseURL, "build", buildCtx.ID)
			}

			// Step 2: Merge defines and register external globals
			normalizeEsbuildOptions(build.InitialOptions, buildCtx)
			setupExternalHandler(opts, buildCtx, &build)

			// Step 3: Start processors and option diagnostics
			build.OnStart(func() (api.OnStartResult, error) {
				for _, processor := range opts.onStartProcessors {
					if err := processor(build.InitialOptions); err != nil {
						opts.logger.Error("Start processor failed", "error", err)
						return api.OnStartResult{}, err
					}
				}
				var warnings []api.Message
				for _, d := range i.cfg.Diagnostics {
					warnings = append(warnings, api.Message{Text: d})
				}
				return api.OnStartResult{Warnings: warnings}, nil
			})

			// Step 4: Copy artifacts, then write the html that references them
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}

				var warnings []api.Message
				for _, t := range buildCtx.Targets {
					if err := CopyBuildArtifacts(buildCtx, opts.copier, t); err != nil {
						opts.logger.Warn("Failed to copy library assets", "target", t.Preset.Name, "error", err, "build", buildCtx.ID)
						warnings = append(warnings, api.Message{
							Text: fmt.Sprintf("copying %s assets failed: %v", t.PackageName, err),
						})
					}
				}

				if err := transformIndexHtml(opts, buildCtx, result, &build); err != nil {
					opts.logger.Error("Failed to transform index html", "error", err, "build", buildCtx.ID)
					return api.OnEndResult{Warnings: warnings}, err
				}

				for _, processor := range opts.onEndProcessors {
					if err := processor(result, build.InitialOptions); err != nil {
						opts.logger.Error("End processor failed", "error", err)
						return api.OnEndResult{Warnings: warnings}, err
					}
				}
				return api.OnEndResult{Warnings: warnings}, nil
			})

			// Step 5: Dispose processors, best-effort cleanup
			build.OnDispose(func() {
				for _, processor := range opts.onDisposeProcessors {
					processor(build.InitialOptions)
				}
			})
		},
	}
}
