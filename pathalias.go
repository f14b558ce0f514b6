// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// tsconfig is the part of tsconfig.json the path alias lookup reads.
type tsconfig struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// parseTsconfigPathAlias returns the tsconfig path aliases of the build, alias -> absolute path.
// Raw tsconfig JSON wins over a tsconfig file. Only the first target of each alias is used.
func parseTsconfigPathAlias(buildOptions *api.BuildOptions) (map[string]string, error) {
	var (
		cfg     tsconfig
		baseDir string
	)
	switch {
	case buildOptions.TsconfigRaw != "":
		if err := json.Unmarshal([]byte(buildOptions.TsconfigRaw), &cfg); err != nil {
			return nil, err
		}
		baseDir = buildOptions.AbsWorkingDir
		if baseDir == "" {
			baseDir, _ = os.Getwd()
		}
	case buildOptions.Tsconfig != "":
		tsconfigPath := buildOptions.Tsconfig
		if !filepath.IsAbs(tsconfigPath) && buildOptions.AbsWorkingDir != "" {
			tsconfigPath = filepath.Join(buildOptions.AbsWorkingDir, tsconfigPath)
		}
		data, err := os.ReadFile(tsconfigPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		baseDir, _ = filepath.Abs(filepath.Dir(tsconfigPath))
	default:
		return map[string]string{}, nil
	}

	// paths are relative to baseUrl when it is set
	if cfg.CompilerOptions.BaseURL != "" {
		baseDir = filepath.Join(baseDir, cfg.CompilerOptions.BaseURL)
	}

	pathAlias := make(map[string]string, len(cfg.CompilerOptions.Paths))
	for alias, targets := range cfg.CompilerOptions.Paths {
		if len(targets) == 0 {
			continue
		}
		pathAlias[alias] = filepath.Join(baseDir, targets[0])
	}
	return pathAlias, nil
}

// applyPathAlias maps p through the best matching alias. An exact alias wins over
// wildcards; among wildcards the longest prefix before the trailing '*' wins, and
// the matched suffix replaces the '*' of the target.
func applyPathAlias(pathAlias map[string]string, p string) string {
	if realPath, ok := pathAlias[p]; ok && !strings.HasSuffix(p, "*") {
		return realPath
	}

	best, bestPrefix := "", ""
	found := false
	for alias := range pathAlias {
		prefix, ok := strings.CutSuffix(alias, "*")
		if !ok || !strings.HasPrefix(p, prefix) {
			continue
		}
		if !found || len(prefix) > len(bestPrefix) || (len(prefix) == len(bestPrefix) && alias < best) {
			best, bestPrefix, found = alias, prefix, true
		}
	}
	if !found {
		return p
	}
	return strings.TrimSuffix(pathAlias[best], "*") + strings.TrimPrefix(p, bestPrefix)
}

// resolveArtifactRoot relocates a node_modules artifact root when tsconfig maps the package elsewhere.
func resolveArtifactRoot(pathAlias map[string]string, pkg, root string) string {
	if len(pathAlias) == 0 {
		return root
	}
	prefix := path.Join("node_modules", pkg)
	if !strings.HasPrefix(root, prefix) {
		return root
	}
	aliased := applyPathAlias(pathAlias, pkg)
	if aliased == pkg {
		return root
	}
	return filepath.ToSlash(filepath.Join(aliased, strings.TrimPrefix(root, prefix)))
}
