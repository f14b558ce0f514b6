// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package config loads the earth project configuration used by the earth CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	earthplugin "github.com/buke/esbuild-plugin-earth-go"
	"github.com/joho/godotenv"
)

// Html configures index html processing.
type Html struct {
	Source     string   // source html, relative to the project root
	Out        string   // output html, defaults to <out_dir>/index.html
	RemoveTags []string // xpaths of nodes removed from the output
}

// Project is the decoded project configuration.
type Project struct {
	Root        string // absolute project root
	File        string // configuration file the project was read from, empty for defaults
	Base        *string
	OutDir      string
	CDNBase     string
	EntryPoints []string
	Html        Html
	Copy        map[string]string // extra files copied after each build, source -> destination
	Define      map[string]string
	UseMars3D   bool
	Cesium      earthplugin.TargetOptions
	Mars3D      earthplugin.TargetOptions
}

// Load reads the project in root: the .env file, the detected configuration
// file and the EARTH_* environment overrides, in that order.
// A project without configuration file gets the defaults.
func Load(root string, opts ...Option) (*Project, error) {
	o := newLoadOptions(opts...)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if o.loadDotenv {
		// A missing .env is not an error
		_ = godotenv.Load(filepath.Join(absRoot, ".env"))
	}
	if o.env == nil {
		o.env = environ()
	}

	file := o.file
	if file == "" {
		file, err = Detect(absRoot)
		if err != nil && !errors.Is(err, ErrNoConfigFile) {
			return nil, err
		}
	} else if !filepath.IsAbs(file) {
		file = filepath.Join(absRoot, file)
	}

	raw := map[string]any{}
	if file != "" {
		o.logger.Debug("Loading configuration", "file", file)
		raw, err = readFile(file, o)
		if err != nil {
			return nil, err
		}
	}

	project, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filepath.Base(file), err)
	}
	project.Root = absRoot
	project.File = file
	project.applyEnv(o.env)
	project.applyDefaults()
	return project, nil
}

// applyEnv lets EARTH_BASE, EARTH_OUT_DIR and EARTH_CDN_BASE override the file.
func (p *Project) applyEnv(env map[string]string) {
	if base, ok := env["EARTH_BASE"]; ok {
		base = strings.TrimSpace(base)
		p.Base = &base
	}
	if outDir := strings.TrimSpace(env["EARTH_OUT_DIR"]); outDir != "" {
		p.OutDir = outDir
	}
	if cdnBase := strings.TrimSpace(env["EARTH_CDN_BASE"]); cdnBase != "" {
		p.CDNBase = cdnBase
	}
}

func (p *Project) applyDefaults() {
	if p.OutDir == "" {
		p.OutDir = "dist"
	}
	if len(p.EntryPoints) == 0 {
		for _, candidate := range []string{"src/main.ts", "src/main.js", "src/index.ts", "src/index.js"} {
			if fileExists(filepath.Join(p.Root, candidate)) {
				p.EntryPoints = []string{candidate}
				break
			}
		}
	}
	if p.Html.Source == "" && fileExists(filepath.Join(p.Root, "index.html")) {
		p.Html.Source = "index.html"
	}
	if p.Html.Source != "" && p.Html.Out == "" {
		p.Html.Out = filepath.ToSlash(filepath.Join(p.OutDir, "index.html"))
	}
}

func environ() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
