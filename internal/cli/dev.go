// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	earthplugin "github.com/buke/esbuild-plugin-earth-go"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newDevCommand(flags *rootFlags, logger *slog.Logger) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Serves the app with live rebuilds",
		Long: `The dev command watches and rebuilds the app with esbuild and serves it together with
the globe library assets, which are served straight from node_modules.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(cmd.Context(), flags, addr, logger)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:5173", "address the dev server listens on")
	return cmd
}

func runDev(ctx context.Context, flags *rootFlags, addr string, logger *slog.Logger) error {
	project, err := loadProject(flags, logger)
	if err != nil {
		return err
	}

	integration, err := earthplugin.New(project.PluginOptions(earthplugin.CommandServe, logger)...)
	if err != nil {
		return err
	}

	esbuildCtx, ctxErr := api.Context(project.BuildOptions(false, integration.Plugin()))
	if ctxErr != nil {
		logMessages(logger, nil, ctxErr.Errors)
		return fmt.Errorf("failed to create build context: %w", ctxErr)
	}
	defer esbuildCtx.Dispose()

	if err := esbuildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}

	outDir := project.OutDir
	if !filepath.IsAbs(outDir) {
		outDir = filepath.Join(project.Root, outDir)
	}
	serveResult, err := esbuildCtx.Serve(api.ServeOptions{Host: "127.0.0.1", Servedir: outDir})
	if err != nil {
		return fmt.Errorf("failed to start esbuild server: %w", err)
	}
	upstream := &url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(int(serveResult.Port)))}

	handler, err := newDevHandler(integration, upstream)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: addr, Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info(fmt.Sprintf("Dev server running at http://%s", addr), "esbuild", upstream.Host)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down dev server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newDevHandler mounts the library routes of the integration in front of a
// reverse proxy to esbuild's server.
func newDevHandler(integration *earthplugin.Integration, upstream *url.URL) (http.Handler, error) {
	chain := earthplugin.NewMiddlewareChain(httputil.NewSingleHostReverseProxy(upstream))
	if err := integration.InstallDevRoutes(chain); err != nil {
		return nil, err
	}
	return chain, nil
}
