// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import "fmt"

// DeliveryMode is the strategy that makes a target's runtime assets reachable.
type DeliveryMode int

const (
	ModeUnresolved DeliveryMode = iota
	DevServe                    // dev server serves the package's own assets
	BuildBundled                // library bundled, assets copied alongside
	BuildExternal               // library loaded by a script tag, assets copied
	BuildCDN                    // library and assets loaded from the CDN
)

func (m DeliveryMode) String() string {
	switch m {
	case DevServe:
		return "dev-serve"
	case BuildBundled:
		return "build-bundled"
	case BuildExternal:
		return "build-external"
	case BuildCDN:
		return "build-cdn"
	default:
		return "unresolved"
	}
}

// copiesArtifacts reports whether the mode stages assets into the output directory.
func (m DeliveryMode) copiesArtifacts() bool {
	return m == BuildBundled || m == BuildExternal
}

// usesGlobal reports whether imports of the package are mapped to its runtime global.
func (m DeliveryMode) usesGlobal() bool {
	return m == BuildExternal || m == BuildCDN
}

// Route picks the delivery mode of one target. CDN always wins, dev builds
// serve the package in place, and production builds bundle only on request.
func Route(t IntegrationTarget, isProduction bool) DeliveryMode {
	switch {
	case t.UseCDN:
		return BuildCDN
	case !isProduction:
		return DevServe
	case t.Rebuild:
		return BuildBundled
	default:
		return BuildExternal
	}
}

// RouteAll routes every target of cfg and returns routed copies, leaving cfg untouched.
// Toolkits are checked against the first renderer they depend on.
func RouteAll(cfg *Config, isProduction bool) ([]IntegrationTarget, error) {
	routed := make([]IntegrationTarget, len(cfg.Targets))
	var renderer *IntegrationTarget
	for i, t := range cfg.Targets {
		t.DeliveryMode = Route(t, isProduction)
		routed[i] = t

		switch t.Preset.Kind {
		case KindRenderer:
			if renderer == nil {
				renderer = &routed[i]
			}
		case KindToolkit:
			if renderer == nil {
				return nil, &InvalidOptionError{Target: t.Preset.Name, Field: "kind", Value: "toolkit", Reason: "a toolkit needs a renderer target"}
			}
			if err := checkCompatible(*renderer, t); err != nil {
				return nil, err
			}
		}
	}
	return routed, nil
}

// checkCompatible verifies a toolkit can find its renderer at runtime.
func checkCompatible(renderer, toolkit IntegrationTarget) error {
	bad := false
	switch toolkit.DeliveryMode {
	case BuildBundled:
		bad = renderer.DeliveryMode == BuildCDN
	case BuildExternal:
		bad = renderer.DeliveryMode == BuildCDN || renderer.DeliveryMode == BuildBundled
	case BuildCDN:
		bad = renderer.DeliveryMode == BuildBundled || renderer.DeliveryMode == DevServe
	}
	if !bad {
		return nil
	}
	return &InvalidOptionError{
		Target: toolkit.Preset.Name,
		Field:  "deliveryMode",
		Value:  toolkit.DeliveryMode.String(),
		Reason: fmt.Sprintf("incompatible with %s delivered as %s", renderer.Preset.Name, renderer.DeliveryMode),
	}
}
