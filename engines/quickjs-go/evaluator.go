// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjsconfig

import (
	_ "embed"
	"sync"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	quickjs "github.com/buke/quickjs-go"
)

// evaluatorScript embeds the config evaluator JavaScript code.
//
//go:embed evaluator.js
var evaluatorScript string

var (
	once              sync.Once
	evaluatorBytecode []byte
	evaluatorErr      error
)

// getEvaluatorBytecode compiles the embedded evaluator script and caches its bytecode.
// Compilation happens once per process.
func getEvaluatorBytecode(jse *quickjsengine.Engine) ([]byte, error) {
	once.Do(func() {
		evaluatorBytecode, evaluatorErr = jse.Ctx.Compile(evaluatorScript, quickjs.EvalFileName("evaluator.js"))
	})
	return evaluatorBytecode, evaluatorErr
}

// loadEvaluatorModule evaluates the compiled evaluator in the QuickJS context,
// defining the global 'earthConfig' object.
func loadEvaluatorModule(jse *quickjsengine.Engine) error {
	bytecode, err := getEvaluatorBytecode(jse)
	if err != nil {
		return err
	}

	ret := jse.Ctx.EvalBytecode(bytecode)
	defer ret.Free()

	if ret.IsException() {
		return jse.Ctx.Exception()
	}
	return nil
}
