// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package qjsconfig

import (
	"os"
	"path/filepath"
	"strings"

	quickjsengine "github.com/buke/js-executor/engines/quickjs-go"
	"github.com/buke/quickjs-go"
)

// jsFunc is the signature of a Go function exposed to QuickJS.
type jsFunc func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value

// rootedPath resolves the first argument against root. Paths that resolve
// outside root are refused.
func rootedPath(root string, args []*quickjs.Value) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	file := args[0].String()
	if file == "" {
		return "", false
	}
	base, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	if filepath.IsAbs(file) {
		file = filepath.Clean(file)
	} else {
		file = filepath.Join(base, file)
	}
	rel, err := filepath.Rel(base, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return file, true
}

// fileExistsFunc reports whether a file under root exists, relative paths resolving against root.
func fileExistsFunc(root string) jsFunc {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		file, ok := rootedPath(root, args)
		if !ok {
			return ctx.Bool(false)
		}
		if _, err := os.Stat(file); err != nil {
			return ctx.Bool(false)
		}
		return ctx.Bool(true)
	}
}

// readFileFunc returns the content of a file, or undefined when it cannot be read.
func readFileFunc(root string) jsFunc {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		file, ok := rootedPath(root, args)
		if !ok {
			return ctx.Undefined()
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return ctx.Undefined()
		}
		return ctx.String(string(data))
	}
}

// realpathFunc returns the absolute path of a file, or undefined when it cannot be resolved.
func realpathFunc(root string) jsFunc {
	return func(ctx *quickjs.Context, this *quickjs.Value, args []*quickjs.Value) *quickjs.Value {
		file, ok := rootedPath(root, args)
		if !ok {
			return ctx.Undefined()
		}
		realpath, err := filepath.Abs(file)
		if err != nil {
			return ctx.Undefined()
		}
		return ctx.String(realpath)
	}
}

// fsModule returns an engine option injecting an 'earthFs' object into the JS context.
// Config scripts use it to probe the project, e.g. whether a package is installed.
func fsModule(root string) quickjsengine.Option {
	return func(jse *quickjsengine.Engine) error {
		globalsObj := jse.Ctx.Globals()
		fsObj := jse.Ctx.Object()
		fsObj.Set("fileExists", jse.Ctx.Function(fileExistsFunc(root)))
		fsObj.Set("readFile", jse.Ctx.Function(readFileFunc(root)))
		fsObj.Set("realpath", jse.Ctx.Function(realpathFunc(root)))
		globalsObj.Set("earthFs", fsObj)
		return nil
	}
}
