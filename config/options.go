// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"

	jsexecutor "github.com/buke/js-executor"
)

// Option configures Load and ReadFile.
type Option func(*loadOptions)

type loadOptions struct {
	file          string                     // explicit config file, skips detection
	env           map[string]string          // exposed to JS configs as their env argument
	engineFactory jsexecutor.JsEngineFactory // evaluates JS configs, defaults to QuickJS
	loadDotenv    bool
	logger        *slog.Logger
}

func newLoadOptions(opts ...Option) *loadOptions {
	o := &loadOptions{
		loadDotenv: true,
		logger:     slog.Default(),
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// WithFile loads the given configuration file instead of detecting one.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = path
	}
}

// WithEnv sets the env object passed to JS configs that export a function.
func WithEnv(env map[string]string) Option {
	return func(o *loadOptions) {
		o.env = env
	}
}

// WithJsEngineFactory sets the engine used to evaluate JS and TS configs.
func WithJsEngineFactory(factory jsexecutor.JsEngineFactory) Option {
	return func(o *loadOptions) {
		o.engineFactory = factory
	}
}

// WithoutDotenv disables loading the project's .env file.
func WithoutDotenv() Option {
	return func(o *loadOptions) {
		o.loadDotenv = false
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loadOptions) {
		o.logger = logger
	}
}
