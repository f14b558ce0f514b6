// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"net/http"
	"strings"
	"sync"
)

type route struct {
	prefix  string
	handler http.Handler
}

// MiddlewareChain is the dev server's append-only route list.
// A request is served by the first registered route whose prefix matches,
// and by the fallback handler when none does.
type MiddlewareChain struct {
	mu       sync.RWMutex
	routes   []route
	fallback http.Handler
}

// NewMiddlewareChain returns a chain that hands unmatched requests to fallback.
// A nil fallback answers 404.
func NewMiddlewareChain(fallback http.Handler) *MiddlewareChain {
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return &MiddlewareChain{fallback: fallback}
}

// Use appends a handler mounted at prefix. The prefix is stripped before the handler runs.
func (c *MiddlewareChain) Use(prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route{
		prefix:  prefix,
		handler: http.StripPrefix(strings.TrimSuffix(prefix, "/"), handler),
	})
}

// Prefixes returns the mounted prefixes in registration order.
func (c *MiddlewareChain) Prefixes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefixes := make([]string, len(c.routes))
	for i, r := range c.routes {
		prefixes[i] = r.prefix
	}
	return prefixes
}

func (c *MiddlewareChain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	routes := c.routes
	c.mu.RUnlock()

	for _, rt := range routes {
		if strings.HasPrefix(r.URL.Path, rt.prefix) {
			rt.handler.ServeHTTP(w, r)
			return
		}
	}
	c.fallback.ServeHTTP(w, r)
}

// ServeStatic serves the files under rootDir.
func ServeStatic(rootDir string) http.Handler {
	return http.FileServer(http.Dir(rootDir))
}

// InstallDevRoutes mounts every DevServe target's artifact tree at its base URL.
// Targets are installed in build context order, renderers first.
func InstallDevRoutes(buildCtx *BuildContext, chain *MiddlewareChain) []string {
	var installed []string
	for _, t := range buildCtx.Targets {
		if t.DeliveryMode != DevServe {
			continue
		}
		prefix := RoutePrefix(t.BaseURL)
		chain.Use(prefix, ServeStatic(buildCtx.absPath(t.DevArtifactRoot)))
		installed = append(installed, prefix)
	}
	return installed
}
