// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
)

// TargetKind tells whether a target is a base renderer or a toolkit layered on one.
type TargetKind int

const (
	KindRenderer TargetKind = iota // globe renderer, loaded first
	KindToolkit                    // toolkit that looks the renderer up through its global
)

// Companion is an extra CDN script a toolkit needs before its own scripts.
type Companion struct {
	Key         string // key used in CDNOptions.Companions for a version override
	PackageName string // npm package name on the CDN
	File        string // file path inside the package
}

// Preset describes the fixed on-disk layout and runtime globals of one library.
type Preset struct {
	Name                string      // short target name used in logs and errors
	Kind                TargetKind  // renderer or toolkit
	DefaultPackageName  string      // package name used when none is configured
	GlobalName          string      // global binding the entry script defines
	BaseURLGlobal       string      // global the library reads its asset base URL from
	BuildPath           string      // artifact root inside the package
	UnminifiedBuildPath string      // unminified artifact root, served in dev unless DevMinify
	CDNPath             string      // artifact root inside the package on the CDN
	Dirs                []string    // fixed sub-folders copied for local delivery
	Files               []string    // extra files copied for local delivery
	EntryScript         string      // entry script relative to the artifact root
	Stylesheet          string      // stylesheet relative to the artifact root
	Companions          []Companion // CDN scripts emitted ahead of the toolkit
}

// CesiumPreset is the layout of the Cesium globe renderer.
var CesiumPreset = Preset{
	Name:                "cesium",
	Kind:                KindRenderer,
	DefaultPackageName:  "cesium",
	GlobalName:          "Cesium",
	BaseURLGlobal:       "CESIUM_BASE_URL",
	BuildPath:           "Build/Cesium",
	UnminifiedBuildPath: "Build/CesiumUnminified",
	CDNPath:             "Build/Cesium",
	Dirs:                []string{"Assets", "ThirdParty", "Workers", "Widgets"},
	EntryScript:         "Cesium.js",
	Stylesheet:          "Widgets/widgets.css",
}

// Mars3DCesiumPreset is the Cesium build redistributed for Mars3D.
var Mars3DCesiumPreset = func() Preset {
	p := CesiumPreset
	p.DefaultPackageName = "mars3d-cesium"
	return p
}()

// Mars3DPreset is the layout of the Mars3D toolkit built on Cesium.
var Mars3DPreset = Preset{
	Name:               "mars3d",
	Kind:               KindToolkit,
	DefaultPackageName: "mars3d",
	GlobalName:         "mars3d",
	BaseURLGlobal:      "MARS3D_BASE_URL",
	BuildPath:          "dist",
	CDNPath:            "dist",
	Dirs:               []string{"img"},
	Files:              []string{"mars3d.css"},
	EntryScript:        "mars3d.js",
	Stylesheet:         "mars3d.css",
	Companions: []Companion{
		{Key: "turf", PackageName: "@turf/turf", File: "turf.min.js"},
	},
}

// CDNOptions enables CDN delivery. A zero value loads the latest versions.
type CDNOptions struct {
	Version    string            // pinned package version, empty means latest
	Companions map[string]string // companion key -> pinned version
}

// TargetOptions are the user supplied, possibly sparse, options of one target.
// Nil pointers mean "not supplied"; a supplied empty string is rejected.
type TargetOptions struct {
	PackageName  *string     // package name, defaults to the preset's
	RunPath      *string     // mount path, defaults to "/"+PackageName+"/"
	ArtifactRoot string      // overrides the discovered artifact root
	Rebuild      bool        // bundle the library source
	UseExternal  *bool       // load the library through a script tag, default true
	UseStatic    bool        // alias of UseExternal=true
	CDN          *CDNOptions // load the library from the CDN
	DevMinify    bool        // serve minified assets in dev
}

// String returns a pointer to s, for the optional string fields of TargetOptions.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for the optional bool fields of TargetOptions.
func Bool(b bool) *bool { return &b }

// TargetInput pairs a preset with the options configured for it.
type TargetInput struct {
	Preset  Preset
	Options TargetOptions
}

// IntegrationTarget is one library after option resolution.
// DeliveryMode stays ModeUnresolved until the mode router runs.
type IntegrationTarget struct {
	Preset            Preset
	PackageName       string
	RuntimeMountPath  string
	BuildArtifactRoot string // artifact root, relative to the project root unless absolute
	DevArtifactRoot   string // tree served in dev mode
	Rebuild           bool
	UseCDN            bool
	CDNVersion        string
	CompanionVersions map[string]string
	DeliveryMode      DeliveryMode

	customRoot bool // artifact root supplied by the user, skip discovery
}

// Config is the canonical configuration produced by Resolve.
type Config struct {
	Targets     []IntegrationTarget
	Diagnostics []string // non-fatal option conflicts that were reconciled
}

// InvalidOptionError reports an unsafe or malformed option.
type InvalidOptionError struct {
	Target string
	Field  string
	Value  string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %s.%s=%q: %s", e.Target, e.Field, e.Value, e.Reason)
}

// Resolve normalizes raw target options into a canonical configuration.
// Renderers are ordered before toolkits; the relative order of the inputs is kept otherwise.
func Resolve(inputs []TargetInput, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := &Config{}
	for _, in := range inputs {
		target, diags, err := resolveTarget(in)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			logger.Warn(d, "target", target.Preset.Name)
		}
		cfg.Diagnostics = append(cfg.Diagnostics, diags...)
		cfg.Targets = append(cfg.Targets, target)
	}

	sort.SliceStable(cfg.Targets, func(i, j int) bool {
		return cfg.Targets[i].Preset.Kind < cfg.Targets[j].Preset.Kind
	})

	mounts := make(map[string]string, len(cfg.Targets))
	hasRenderer := false
	for _, t := range cfg.Targets {
		key := path.Clean("/" + t.RuntimeMountPath)
		if other, ok := mounts[key]; ok {
			return nil, &InvalidOptionError{
				Target: t.Preset.Name,
				Field:  "runPath",
				Value:  t.RuntimeMountPath,
				Reason: fmt.Sprintf("mount path already used by %s", other),
			}
		}
		mounts[key] = t.Preset.Name

		switch t.Preset.Kind {
		case KindRenderer:
			hasRenderer = true
		case KindToolkit:
			if !hasRenderer {
				return nil, &InvalidOptionError{
					Target: t.Preset.Name,
					Field:  "kind",
					Value:  "toolkit",
					Reason: "a toolkit needs a renderer target",
				}
			}
		}
	}

	return cfg, nil
}

func resolveTarget(in TargetInput) (IntegrationTarget, []string, error) {
	p := in.Preset
	o := in.Options
	var diags []string

	pkg := p.DefaultPackageName
	if o.PackageName != nil {
		if err := validateSegment(p.Name, "packageName", *o.PackageName); err != nil {
			return IntegrationTarget{}, nil, err
		}
		pkg = *o.PackageName
	}

	runPath := "/" + pkg + "/"
	if o.RunPath != nil {
		if err := validateSegment(p.Name, "runPath", *o.RunPath); err != nil {
			return IntegrationTarget{}, nil, err
		}
		runPath = *o.RunPath
	}

	external := o.UseStatic
	if o.UseExternal != nil {
		external = external || *o.UseExternal
	}
	rebuild := o.Rebuild || (o.UseExternal != nil && !*o.UseExternal && !o.UseStatic)
	if rebuild && external {
		diags = append(diags, fmt.Sprintf("%s: rebuild and useExternal both set, bundling the library", p.Name))
	}

	t := IntegrationTarget{
		Preset:           p,
		PackageName:      pkg,
		RuntimeMountPath: runPath,
		Rebuild:          rebuild,
	}

	if o.CDN != nil {
		if rebuild {
			diags = append(diags, fmt.Sprintf("%s: useCDN and rebuild both set, CDN takes precedence", p.Name))
		}
		t.UseCDN = true
		t.Rebuild = false
		t.CDNVersion = o.CDN.Version
		t.CompanionVersions = o.CDN.Companions
	}

	root := o.ArtifactRoot
	if root == "" {
		root = path.Join("node_modules", pkg, p.BuildPath)
	}
	t.BuildArtifactRoot = root
	t.DevArtifactRoot = root
	t.customRoot = o.ArtifactRoot != ""
	if !o.DevMinify && p.UnminifiedBuildPath != "" && o.ArtifactRoot == "" {
		t.DevArtifactRoot = path.Join("node_modules", pkg, p.UnminifiedBuildPath)
	}

	return t, diags, nil
}

// validateSegment rejects values that are empty, whitespace only, or could escape the output directory.
func validateSegment(target, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &InvalidOptionError{Target: target, Field: field, Value: value, Reason: "must not be empty"}
	}
	for _, seg := range strings.FieldsFunc(toPosixPath(value), func(r rune) bool { return r == '/' }) {
		if seg == ".." {
			return &InvalidOptionError{Target: target, Field: field, Value: value, Reason: "must not contain '..' segments"}
		}
	}
	return nil
}
