// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	qjsconfig "github.com/buke/esbuild-plugin-earth-go/engines/quickjs-go"
	jsexecutor "github.com/buke/js-executor"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/xid"
)

// evaluateScript transforms a JS or TS config to CommonJS and evaluates it in the JS executor.
func evaluateScript(path string, o *loadOptions) (map[string]any, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	loader := api.LoaderJS
	if strings.HasSuffix(path, "ts") {
		loader = api.LoaderTS
	}
	transformed := api.Transform(string(source), api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatCommonJS,
		Target:     api.ES2020,
		Sourcefile: filepath.Base(path),
	})
	if len(transformed.Errors) > 0 {
		msg := transformed.Errors[0]
		if msg.Location != nil {
			return nil, fmt.Errorf("failed to transform %s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return nil, fmt.Errorf("failed to transform %s: %s", filepath.Base(path), msg.Text)
	}

	factory := o.engineFactory
	if factory == nil {
		factory = qjsconfig.NewConfigEvaluatorFactory(filepath.Dir(path))
	}
	jsExec, err := jsexecutor.NewExecutor(jsexecutor.WithJsEngine(factory))
	if err != nil {
		return nil, fmt.Errorf("failed to create js executor: %w", err)
	}
	if err := jsExec.Start(); err != nil {
		return nil, fmt.Errorf("failed to start js executor: %w", err)
	}
	defer jsExec.Stop()

	env := make(map[string]interface{}, len(o.env))
	for k, v := range o.env {
		env[k] = v
	}

	jsResponse, err := jsExec.Execute(&jsexecutor.JsRequest{
		Id:      xid.New().String(),
		Service: qjsconfig.ServiceEvaluate,
		Args:    []interface{}{string(transformed.Code), env},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", filepath.Base(path), err)
	}

	config, ok := jsResponse.Result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid result from evaluating %s", filepath.Base(path))
	}
	return config, nil
}
