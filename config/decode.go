// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	earthplugin "github.com/buke/esbuild-plugin-earth-go"
)

// Decode converts a parsed configuration into a Project.
// Keys may be written in snake_case, kebab-case or camelCase; unknown keys are ignored.
func Decode(raw map[string]any) (*Project, error) {
	d := &decoder{}
	s := section{d: d, m: raw}

	p := &Project{
		Base:        s.optString("base"),
		OutDir:      s.str("out_dir"),
		CDNBase:     s.str("cdn_base"),
		EntryPoints: s.strings("entry_points"),
		Define:      s.stringMap("define"),
		Copy:        s.stringMap("copy"),
		UseMars3D:   s.boolean("use_mars3d"),
	}

	if html, ok := s.table("html"); ok {
		p.Html = Html{
			Source:     html.str("source"),
			Out:        html.str("out"),
			RemoveTags: html.strings("remove_tags"),
		}
	}
	if cesium, ok := s.table("cesium"); ok {
		p.Cesium = cesium.target()
	}
	if mars3d, ok := s.table("mars3d"); ok {
		p.Mars3D = mars3d.target()
	}
	s.cdn(p)

	if len(d.errs) > 0 {
		return nil, errors.Join(d.errs...)
	}
	return p, nil
}

type decoder struct {
	errs []error
}

// section is one table of the configuration, name is its dotted path.
type section struct {
	d    *decoder
	m    map[string]any
	name string
}

func normalizeKey(key string) string {
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, "-", "")
	return strings.ToLower(key)
}

func (s section) path(key string) string {
	if s.name == "" {
		return key
	}
	return s.name + "." + key
}

func (s section) value(key string) (any, bool) {
	want := normalizeKey(key)
	for k, v := range s.m {
		if normalizeKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

func (s section) typeError(key, want string, v any) {
	s.d.errs = append(s.d.errs, fmt.Errorf("%s: expected %s, got %T", s.path(key), want, v))
}

func (s section) optString(key string) *string {
	v, ok := s.value(key)
	if !ok {
		return nil
	}
	str, ok := v.(string)
	if !ok {
		s.typeError(key, "string", v)
		return nil
	}
	return &str
}

func (s section) str(key string) string {
	if v := s.optString(key); v != nil {
		return *v
	}
	return ""
}

func (s section) optBool(key string) *bool {
	v, ok := s.value(key)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		s.typeError(key, "bool", v)
		return nil
	}
	return &b
}

func (s section) boolean(key string) bool {
	if v := s.optBool(key); v != nil {
		return *v
	}
	return false
}

func (s section) strings(key string) []string {
	v, ok := s.value(key)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}
	case []any:
		out := make([]string, 0, len(list))
		for i, item := range list {
			str, ok := item.(string)
			if !ok {
				s.typeError(fmt.Sprintf("%s[%d]", key, i), "string", item)
				continue
			}
			out = append(out, str)
		}
		return out
	}
	s.typeError(key, "list of strings", v)
	return nil
}

func (s section) table(key string) (section, bool) {
	v, ok := s.value(key)
	if !ok {
		return section{}, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		s.typeError(key, "table", v)
		return section{}, false
	}
	return section{d: s.d, m: m, name: s.path(key)}, true
}

func (s section) stringMap(key string) map[string]string {
	t, ok := s.table(key)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(t.m))
	for k, v := range t.m {
		str, ok := v.(string)
		if !ok {
			t.typeError(k, "string", v)
			continue
		}
		out[k] = str
	}
	return out
}

// target decodes the options of one integration target.
func (s section) target() earthplugin.TargetOptions {
	return earthplugin.TargetOptions{
		PackageName:  s.optString("package_name"),
		RunPath:      s.optString("run_path"),
		ArtifactRoot: s.str("artifact_root"),
		Rebuild:      s.boolean("rebuild"),
		UseExternal:  s.optBool("use_external"),
		UseStatic:    s.boolean("use_static"),
		DevMinify:    s.boolean("dev_minify"),
	}
}

// cdn decodes use_cdn, which is either a bool, the renderer version, or a
// table of versions keyed by package, companions included.
func (s section) cdn(p *Project) {
	v, ok := s.value("use_cdn")
	if !ok {
		return
	}
	switch c := v.(type) {
	case bool:
		if c {
			p.Cesium.CDN = &earthplugin.CDNOptions{}
			p.Mars3D.CDN = &earthplugin.CDNOptions{}
		}
	case string:
		p.Cesium.CDN = &earthplugin.CDNOptions{Version: c}
		p.Mars3D.CDN = &earthplugin.CDNOptions{}
	case map[string]any:
		renderer := &earthplugin.CDNOptions{}
		toolkit := &earthplugin.CDNOptions{}
		for k, val := range c {
			version, ok := val.(string)
			if !ok {
				s.typeError("use_cdn."+k, "version string", val)
				continue
			}
			switch normalizeKey(k) {
			case "cesium", "mars3dcesium":
				renderer.Version = version
			case "mars3d":
				toolkit.Version = version
			default:
				if toolkit.Companions == nil {
					toolkit.Companions = map[string]string{}
				}
				toolkit.Companions[k] = version
			}
		}
		p.Cesium.CDN = renderer
		p.Mars3D.CDN = toolkit
	default:
		s.typeError("use_cdn", "bool, version string or table", v)
	}
}
