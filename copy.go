// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash"
)

// Copier copies a file or a directory tree from src to dst.
type Copier interface {
	CopyTree(src, dst string) error
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(src, dst string) error

func (f CopierFunc) CopyTree(src, dst string) error { return f(src, dst) }

// FSCopier copies trees on the local file system. Files whose content already
// matches the destination are left untouched, so watch rebuilds stay cheap.
type FSCopier struct{}

// NewFSCopier returns the default local file system copier.
func NewFSCopier() *FSCopier {
	return &FSCopier{}
}

// CopyTree copies src to dst. src may be a single file or a directory.
func (c *FSCopier) CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return copyFileIfChanged(src, dst)
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFileIfChanged(p, target)
	})
}

// copyFileIfChanged copies src to dst unless both already hash the same.
func copyFileIfChanged(src, dst string) error {
	if same, err := sameContent(src, dst); err == nil && same {
		return nil
	}
	return copyFile(src, dst)
}

func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}
	ha, err := hashFile(a)
	if err != nil {
		return false, err
	}
	hb, err := hashFile(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

func hashFile(name string) (uint64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// copyFile copies a single file, creating the destination directories.
func copyFile(srcFile, outFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", srcFile, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return fmt.Errorf("failed to create output dir for %s: %w", outFile, err)
	}

	dst, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outFile, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy from %s to %s: %w", srcFile, outFile, err)
	}
	return dst.Close()
}

// CopyBuildArtifacts stages a target's artifact tree under the output directory.
// BuildExternal copies the fixed folders, the extra files and the entry script;
// BuildBundled skips the entry script; other modes copy nothing.
// Every copy is attempted and the failures are returned joined.
func CopyBuildArtifacts(buildCtx *BuildContext, copier Copier, target ResolvedTarget) error {
	if !target.DeliveryMode.copiesArtifacts() {
		return nil
	}

	srcRoot := buildCtx.absPath(target.BuildArtifactRoot)
	dstRoot := filepath.Join(buildCtx.OutDir, filepath.FromSlash(target.RuntimeMountPath))

	items := make([]string, 0, len(target.Preset.Dirs)+len(target.Preset.Files)+1)
	items = append(items, target.Preset.Dirs...)
	items = append(items, target.Preset.Files...)
	if target.DeliveryMode == BuildExternal && target.Preset.EntryScript != "" {
		items = append(items, target.Preset.EntryScript)
	}

	var errs []error
	for _, item := range items {
		src := filepath.Join(srcRoot, filepath.FromSlash(item))
		dst := filepath.Join(dstRoot, filepath.FromSlash(item))
		if err := copier.CopyTree(src, dst); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", item, err))
		}
	}
	return errors.Join(errs...)
}
