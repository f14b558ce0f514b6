// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"fmt"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
)

const externalNamespace = "earth-external"

// setupExternalHandler maps imports of externally delivered packages to their runtime globals.
// The package itself is loaded by a script tag, so the bundle only reads the global.
func setupExternalHandler(opts *Options, buildCtx *BuildContext, build *api.PluginBuild) {
	globals := make(map[string]string)
	for _, t := range buildCtx.Targets {
		if !t.DeliveryMode.usesGlobal() || t.Preset.GlobalName == "" {
			continue
		}
		globals[t.PackageName] = t.Preset.GlobalName

		filter := "^" + regexp.QuoteMeta(t.PackageName) + "$"
		build.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			return api.OnResolveResult{
				Path:      args.Path,
				Namespace: externalNamespace,
			}, nil
		})
	}

	if len(globals) == 0 {
		return
	}

	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: externalNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		global, ok := globals[args.Path]
		if !ok {
			opts.logger.Error("No global registered for external package", "package", args.Path)
			return api.OnLoadResult{}, fmt.Errorf("no global registered for %s", args.Path)
		}
		contents := fmt.Sprintf("module.exports = globalThis[%s];", jsString(global))
		return api.OnLoadResult{
			Contents: &contents,
			Loader:   api.LoaderJS,
		}, nil
	})
}
