// Package serve runs the MCP server over stdio or HTTP.
package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/internal/common"
	"github.com/dtnitsch/llm-archive-reader/internal/mcp"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve command.
func Command() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the MCP server",
		Action: Action,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "stdio or http (overrides config)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "HTTP listen host (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP listen port (overrides config)",
			},
		},
	}
}

// Action runs the server until stdin closes, a signal arrives or the HTTP
// server fails.
func Action(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("transport") {
		cfg.Server.Transport = c.String("transport")
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.Bootstrap(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg.Server, a, log)
}

// Run serves a over the configured transport until ctx is done.
func Run(ctx context.Context, cfg models.ServerConfig, a *app.App, log logger.Logger) error {
	srv := mcp.NewServer(a, log)

	switch cfg.Transport {
	case models.TransportStdio:
		log.Info("serving MCP over stdio")
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	case models.TransportHTTP:
		return runHTTP(ctx, cfg, srv, a.Health, log)
	default:
		return faults.Config("unknown transport %q", cfg.Transport)
	}
}

func runHTTP(ctx context.Context, cfg models.ServerConfig, srv *mcp.Server, health HealthFunc, log logger.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           NewRouter(srv, health, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
