// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/xid"
)

// ResolvedTarget is a target with its routed mode and computed base URL.
type ResolvedTarget struct {
	IntegrationTarget
	BaseURL string // URL the assets are referenced by
	CDNBase string // CDN the target is loaded from, set in BuildCDN mode only
	CDNRoot string // CDN artifact root, set in BuildCDN mode only
}

// BuildContext holds the values derived once per build invocation.
// Every later lifecycle step reads it and none recomputes it.
type BuildContext struct {
	ID           string // correlates log lines of one invocation
	IsProduction bool
	BasePath     string
	OutDir       string // absolute output directory
	Root         string // absolute project root
	IndexHtml    string // absolute output html file, empty without html processing
	Targets      []ResolvedTarget
}

// Target returns the resolved target with the given preset name.
func (c *BuildContext) Target(name string) (ResolvedTarget, bool) {
	for _, t := range c.Targets {
		if t.Preset.Name == name {
			return t, true
		}
	}
	return ResolvedTarget{}, false
}

// newBuildContext derives the build context from plugin options and esbuild's initial options.
func newBuildContext(opts *Options, cfg *Config, buildOptions *api.BuildOptions) (*BuildContext, error) {
	ctx := &BuildContext{
		ID:           xid.New().String(),
		IsProduction: resolveProduction(opts, buildOptions),
		BasePath:     resolveBasePath(opts, buildOptions),
	}

	ctx.Root = buildOptions.AbsWorkingDir
	if ctx.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		ctx.Root = wd
	}
	ctx.OutDir = resolveOutDir(opts, buildOptions, ctx.Root)
	if opts.indexHtmlOptions.OutFile != "" {
		ctx.IndexHtml = ctx.absPath(opts.indexHtmlOptions.OutFile)
	}

	routed, err := RouteAll(cfg, ctx.IsProduction)
	if err != nil {
		return nil, err
	}

	// tsconfig path aliases may relocate a package outside node_modules
	pathAlias, err := parseTsconfigPathAlias(buildOptions)
	if err != nil {
		opts.logger.Warn("Failed to parse tsconfig path aliases", "error", err)
		pathAlias = nil
	}

	for _, t := range routed {
		if !t.customRoot {
			t.BuildArtifactRoot = resolveArtifactRoot(pathAlias, t.PackageName, t.BuildArtifactRoot)
			t.DevArtifactRoot = resolveArtifactRoot(pathAlias, t.PackageName, t.DevArtifactRoot)
		}
		rt := ResolvedTarget{IntegrationTarget: t}
		if t.DeliveryMode == BuildCDN {
			rt.CDNBase = opts.cdnBase
			rt.CDNRoot = cdnRoot(opts.cdnBase, t.PackageName, t.CDNVersion, t.Preset.CDNPath)
			rt.BaseURL = rt.CDNRoot
		} else {
			rt.BaseURL = ComputeBaseURL(ctx.BasePath, t.RuntimeMountPath)
		}
		ctx.Targets = append(ctx.Targets, rt)
	}
	return ctx, nil
}

func resolveProduction(opts *Options, buildOptions *api.BuildOptions) bool {
	switch opts.command {
	case CommandBuild:
		return true
	case CommandServe:
		return false
	}
	if v, exists := parseImportMetaEnv(buildOptions.Define, "PROD"); exists {
		if prod, ok := v.(bool); ok {
			return prod
		}
	}
	if v, exists := parseImportMetaEnv(buildOptions.Define, "MODE"); exists {
		if mode, ok := v.(string); ok {
			return mode != "development"
		}
	}
	return true
}

func resolveBasePath(opts *Options, buildOptions *api.BuildOptions) string {
	if opts.basePath != nil {
		if *opts.basePath == "" {
			return "./"
		}
		return *opts.basePath
	}
	if v, exists := parseImportMetaEnv(buildOptions.Define, "BASE_URL"); exists {
		if base, ok := v.(string); ok && base != "" {
			return base
		}
	}
	return "/"
}

func resolveOutDir(opts *Options, buildOptions *api.BuildOptions, root string) string {
	outDir := opts.outDir
	if outDir == "" {
		outDir = buildOptions.Outdir
	}
	if outDir == "" && buildOptions.Outfile != "" {
		outDir = filepath.Dir(buildOptions.Outfile)
	}
	if outDir == "" {
		outDir = "dist"
	}
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(root, outDir)
	}
	return outDir
}

// cdnRoot builds the CDN URL of a package's artifact root, pinned when version is set.
func cdnRoot(cdnBase, pkg, version, subPath string) string {
	ref := pkg
	if version != "" {
		ref += "@" + version
	}
	u := strings.TrimSuffix(cdnBase, "/") + "/" + ref
	if subPath != "" {
		u += "/" + strings.Trim(subPath, "/")
	}
	return u + "/"
}

// absPath resolves p against the project root.
func (c *BuildContext) absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}
