package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/config"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/dispatcher"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/group"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/iomgr"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/logging"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/monitor"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/policy"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/proctable"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/services"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/spawner"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/terminator"
	"github.com/Digital-Defiance/mcp-process-sub000/internal/timeouts"
	"go.uber.org/zap"
)

const (
	serverName = "mcp-process"
	version    = "0.1.0"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to the security config JSON file")
		createConfig = flag.String("create-config", "", "write a sample security config to this path and exit")
		checkConfig  = flag.Bool("check-config", false, "load and validate the resolved config, then exit")
		logLevel     = flag.String("log-level", "info", "operational log level (debug, info, warn, error)")
		devLog       = flag.Bool("dev-log", false, "use human-readable development log encoding")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s %s - MCP process supervisor\n\n", serverName, version)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [flags]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *createConfig != "" {
		if err := config.WriteSample(*createConfig); err != nil {
			fmt.Fprintf(os.Stderr, "create-config failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote sample config to %s\n", *createConfig)
		return
	}

	resolvedPath := config.ResolvePath(*configPath)
	if resolvedPath == "" {
		fmt.Fprintln(os.Stderr, "no security config found; pass --config or run --create-config <path> first")
		os.Exit(1)
	}
	cfg, err := config.Load(resolvedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if *checkConfig {
		fmt.Fprintf(os.Stderr, "config %s is valid\n", resolvedPath)
		return
	}

	log := logging.NewOperational(*logLevel, *devLog)
	defer log.Sync()
	audit := logging.NewAudit(cfg.EnableAuditLog)
	defer audit.Sync()

	log.Info("loaded security config", zap.String("path", resolvedPath))

	pol, err := policy.New(cfg, log, audit)
	if err != nil {
		log.Fatal("policy manager construction failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table := proctable.New(pol, log)
	table.StartReaper(ctx)
	defer table.StopReaper()

	ioManager := iomgr.New(log)
	monManager := monitor.New(log, table)

	toManager := timeouts.New(log, cfg.DefaultTimeoutMs)
	go toManager.Run(ctx)
	defer toManager.ClearAll()

	sp := spawner.New(pol, table, monManager, toManager, ioManager, log)
	term := terminator.New(pol, table, log)
	grp := group.New(table, log)
	svc := services.New(sp, table, log)

	disp := dispatcher.New(pol, sp, table, monManager, ioManager, term, grp, svc, log)

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, terminating managed processes")
		if err := term.ShutdownAll(context.Background()); err != nil {
			log.Warn("shutdown had errors", zap.Error(err))
		}
	}()

	log.Info("serving MCP tools over stdio", zap.String("name", serverName), zap.String("version", version))
	if err := disp.Serve(ctx, serverName, version); err != nil {
		log.Fatal("mcp server exited with error", zap.Error(err))
	}
}
