// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package qjsconfig provides a QuickJS engine that evaluates earth.config.js and
// earth.config.ts files for the js-executor.
package qjsconfig

import (
	jsexecutor "github.com/buke/js-executor"
	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
)

// ServiceEvaluate is the executor service that evaluates a CommonJS config source.
// It takes the source and an env object and returns the exported config object.
const ServiceEvaluate = "earthConfig.evaluate"

// NewConfigEvaluatorFactory creates a JsEngineFactory with the config evaluator and
// the 'earthFs' helpers rooted at root loaded.
// Additional QuickJS engine options can be passed via the variadic parameter.
func NewConfigEvaluatorFactory(root string, options ...quickjsengine.Option) jsexecutor.JsEngineFactory {
	options = append(options, fsModule(root))
	options = append(options, loadEvaluatorModule)
	return quickjsengine.NewFactory(options...)
}
