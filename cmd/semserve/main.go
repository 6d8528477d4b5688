// Package main implements the entry point for semserve, a
// configuration-driven linked data server: a YAML route specification
// binds HTTP routes to GraphQL-LD and SPARQL queries over remote data
// sources, with postprocessing pipes and content-negotiated responses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/c360/semserve/engine"
	"github.com/c360/semserve/pipes"
	"github.com/c360/semserve/routeconfig"
	"github.com/c360/semserve/server"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semserve"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting semserve (configuration-driven linked data server)",
		"version", Version,
		"build_time", BuildTime,
		"spec_path", cliCfg.SpecPath)

	spec, err := routeconfig.Load(cliCfg.SpecPath)
	if err != nil {
		return fmt.Errorf("load route specification: %w", err)
	}

	warnings, err := spec.Validate()
	for _, w := range warnings {
		slog.Warn("route specification warning", "warning", w)
	}
	if err != nil {
		return fmt.Errorf("validate route specification: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Route specification is valid",
			"routes", len(spec.Routes()), "warnings", len(warnings))
		return nil
	}

	registry := prometheus.NewRegistry()

	engines, err := engine.NewCache(func(sources []string, lenient bool) (engine.Engine, error) {
		return engine.NewClient(sources, lenient,
			engine.WithResponseTTL(cliCfg.QueryCacheTTL),
			engine.WithClientLogger(logger))
	}, engine.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create engine cache: %w", err)
	}
	defer func() { _ = engines.Close() }()

	pipeRegistry := pipes.NewRegistry()
	if err := pipes.RegisterBuiltins(pipeRegistry); err != nil {
		return fmt.Errorf("register built-in pipes: %w", err)
	}
	for _, name := range spec.PipeNames() {
		if _, ok := pipeRegistry.Lookup(name); !ok {
			slog.Warn("route specification references an unregistered pipe", "pipe", name)
		}
	}

	srv, err := server.New(server.Config{
		Addr:      cliCfg.Addr,
		RateLimit: cliCfg.RateLimit,
		RateBurst: cliCfg.RateBurst,
	}, spec, server.Dependencies{
		Engines:  engines,
		Pipes:    pipeRegistry,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}
