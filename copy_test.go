// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

type copyCall struct {
	src, dst string
}

type recordingCopier struct {
	calls []copyCall
	fail  map[string]error // keyed by the base name of src
}

func (r *recordingCopier) CopyTree(src, dst string) error {
	r.calls = append(r.calls, copyCall{src: src, dst: dst})
	if err, ok := r.fail[filepath.Base(src)]; ok {
		return err
	}
	return nil
}

func (r *recordingCopier) items() []string {
	var items []string
	for _, c := range r.calls {
		items = append(items, filepath.Base(c.src))
	}
	sort.Strings(items)
	return items
}

func testBuildContext(t *testing.T) *BuildContext {
	root := t.TempDir()
	return &BuildContext{
		ID:           "test",
		IsProduction: true,
		BasePath:     "/",
		Root:         root,
		OutDir:       filepath.Join(root, "dist"),
	}
}

func TestCopyBuildArtifactsByMode(t *testing.T) {
	tests := []struct {
		name    string
		options TargetOptions
		prod    bool
		want    []string
	}{
		{"build_external", TargetOptions{}, true, []string{"Assets", "Cesium.js", "ThirdParty", "Widgets", "Workers"}},
		{"build_bundled", TargetOptions{Rebuild: true}, true, []string{"Assets", "ThirdParty", "Widgets", "Workers"}},
		{"build_cdn", TargetOptions{CDN: &CDNOptions{}}, true, nil},
		{"dev_serve", TargetOptions{}, false, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buildCtx := testBuildContext(t)
			targets := resolvedTargets(t, test.prod, TargetInput{Preset: CesiumPreset, Options: test.options})
			copier := &recordingCopier{}

			if err := CopyBuildArtifacts(buildCtx, copier, targets[0]); err != nil {
				t.Fatalf("CopyBuildArtifacts failed: %v", err)
			}
			got := copier.items()
			if strings.Join(got, ",") != strings.Join(test.want, ",") {
				t.Errorf("Expected copies %v, got %v", test.want, got)
			}
		})
	}
}

func TestCopyBuildArtifactsPaths(t *testing.T) {
	buildCtx := testBuildContext(t)
	targets := resolvedTargets(t, true, TargetInput{
		Preset:  CesiumPreset,
		Options: TargetOptions{RunPath: String("libs/globe")},
	})
	copier := &recordingCopier{}
	if err := CopyBuildArtifacts(buildCtx, copier, targets[0]); err != nil {
		t.Fatalf("CopyBuildArtifacts failed: %v", err)
	}

	first := copier.calls[0]
	wantSrc := filepath.Join(buildCtx.Root, "node_modules", "cesium", "Build", "Cesium", "Assets")
	wantDst := filepath.Join(buildCtx.OutDir, "libs", "globe", "Assets")
	if first.src != wantSrc {
		t.Errorf("Expected source %s, got %s", wantSrc, first.src)
	}
	if first.dst != wantDst {
		t.Errorf("Expected destination %s, got %s", wantDst, first.dst)
	}
}

func TestCopyBuildArtifactsJoinsErrors(t *testing.T) {
	buildCtx := testBuildContext(t)
	targets := resolvedTargets(t, true, TargetInput{Preset: CesiumPreset})
	errAssets := errors.New("assets missing")
	errWorkers := errors.New("workers missing")
	copier := &recordingCopier{fail: map[string]error{"Assets": errAssets, "Workers": errWorkers}}

	err := CopyBuildArtifacts(buildCtx, copier, targets[0])
	if !errors.Is(err, errAssets) || !errors.Is(err, errWorkers) {
		t.Fatalf("Expected both failures joined, got %v", err)
	}
	// Every item is still attempted
	if len(copier.calls) != 5 {
		t.Errorf("Expected 5 copy attempts, got %d", len(copier.calls))
	}
}

func TestFSCopierCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Build")
	dst := filepath.Join(t.TempDir(), "out", "cesium")
	files := map[string]string{
		"Cesium.js":                "var Cesium = {};",
		"Workers/createTask.js":    "self.onmessage = null;",
		"Widgets/widgets.css":      "body {}",
		"Assets/Textures/moon.jpg": "jpg",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	copier := NewFSCopier()
	if err := copier.CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}
	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("Expected %s to be copied: %v", name, err)
		}
		if string(got) != content {
			t.Errorf("Unexpected content of %s: %q", name, got)
		}
	}

	// A single file is copied as is
	single := filepath.Join(t.TempDir(), "Cesium.js")
	if err := copier.CopyTree(filepath.Join(src, "Cesium.js"), single); err != nil {
		t.Fatalf("CopyTree of a file failed: %v", err)
	}
	if _, err := os.Stat(single); err != nil {
		t.Errorf("Expected single file copy: %v", err)
	}
}

func TestFSCopierSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.js")
	dst := filepath.Join(dir, "out", "dst.js")
	if err := os.WriteFile(src, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}

	copier := NewFSCopier()
	if err := copier.CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree failed: %v", err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(dst, old, old); err != nil {
		t.Fatal(err)
	}

	if err := copier.CopyTree(src, dst); err != nil {
		t.Fatalf("Second CopyTree failed: %v", err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(old) {
		t.Errorf("Expected unchanged file to be skipped, mtime moved to %v", info.ModTime())
	}

	// Changed content is copied again
	if err := os.WriteFile(src, []byte("diff"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := copier.CopyTree(src, dst); err != nil {
		t.Fatalf("Third CopyTree failed: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "diff" {
		t.Errorf("Expected changed content to be copied, got %q", got)
	}
}

func TestFSCopierMissingSource(t *testing.T) {
	err := NewFSCopier().CopyTree(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("Expected stat error, got %v", err)
	}
}

func TestCopierFunc(t *testing.T) {
	var got string
	c := CopierFunc(func(src, dst string) error {
		got = src + "->" + dst
		return nil
	})
	if err := c.CopyTree("a", "b"); err != nil || got != "a->b" {
		t.Errorf("Unexpected result %q, %v", got, err)
	}
}
