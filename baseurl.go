// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"net/url"
	"path"
	"strings"
)

// toPosixPath converts Windows-style paths to POSIX-style paths.
func toPosixPath(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// ComputeBaseURL joins the project base path and a target's mount path into the
// URL the target's assets are served under.
//
// The result always ends with exactly one slash. An empty base path means the
// build is served from a relative location and yields a "./" prefixed URL.
// Absolute and protocol-relative URL bases (https://host/app/, //host/app/)
// are joined on their path component.
func ComputeBaseURL(basePath, mountPath string) string {
	if basePath == "" {
		basePath = "./"
	}
	basePath = toPosixPath(basePath)
	mountPath = toPosixPath(mountPath)

	if u, err := url.Parse(basePath); err == nil && u.Host != "" {
		u.Path = joinURLPath(u.Path, mountPath, false)
		u.RawPath = ""
		return u.String()
	}

	relative := !strings.HasPrefix(basePath, "/")
	return joinURLPath(basePath, mountPath, relative)
}

// NormalizeURL re-applies the base URL normalization to an already computed URL.
// For any output of ComputeBaseURL it returns its input unchanged.
func NormalizeURL(u string) string {
	return ComputeBaseURL(u, "")
}

// joinURLPath joins two URL path segments and enforces a single trailing slash.
func joinURLPath(base, mount string, relative bool) string {
	joined := path.Join(base, mount)
	if relative {
		switch {
		case joined == ".":
			return "./"
		case strings.HasPrefix(joined, "../"), joined == "..":
			// keep parent-relative bases as they are
		default:
			joined = "./" + strings.TrimPrefix(joined, "./")
		}
	}
	if joined == "" {
		joined = "/"
	}
	if !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// RoutePrefix returns the absolute path prefix a dev server mounts a base URL at.
// Relative and absolute-URL base URLs both map onto a leading-slash path.
func RoutePrefix(baseURL string) string {
	p := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		p = u.Path
	}
	p = path.Join("/", p)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// joinAssetURL appends a relative asset path to a base URL produced by ComputeBaseURL.
func joinAssetURL(baseURL, asset string) string {
	return baseURL + strings.TrimPrefix(toPosixPath(asset), "/")
}
