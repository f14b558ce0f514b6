// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
)

// ErrNoConfigFile is returned by Detect when the project has no earth configuration file.
var ErrNoConfigFile = errors.New("no earth configuration file found")

// FileNames lists the configuration files Detect looks for, in precedence order.
var FileNames = []string{
	"earth.toml",
	"earth.json",
	"earth.jsonc",
	"earth.config.js",
	"earth.config.ts",
}

// Detect returns the path of the first configuration file found in root.
func Detect(root string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", err
		}
		if info.IsDir() {
			continue
		}
		return path, nil
	}
	return "", ErrNoConfigFile
}

// ReadFile parses a configuration file into a generic map.
// TOML and JSON(C) files are decoded directly; JS and TS files are evaluated.
func ReadFile(path string, opts ...Option) (map[string]any, error) {
	return readFile(path, newLoadOptions(opts...))
}

func readFile(path string, o *loadOptions) (map[string]any, error) {
	ext := filepath.Ext(path)
	switch ext {
	case ".js", ".ts", ".mjs", ".mts":
		return evaluateScript(path, o)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := map[string]any{}
	switch ext {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration file %s", filepath.Base(path))
	}
	return config, nil
}
