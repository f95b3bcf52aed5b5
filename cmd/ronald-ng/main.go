package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"ronald-ng/internal/config"
	"ronald-ng/internal/web"
)

func main() {
	var (
		configPath  string
		summaryPath string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "./configs/ronald.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "drawlog-summary", "", "Summarize a recorded draw stream and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("ronald-ng", buildVersion())
		return
	}
	if summaryPath != "" {
		if err := printDrawlogSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("drawlog summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Tee process logs into a ring so the web UI can tail them.
	logBuf := web.NewLogBuffer(0)
	log.SetOutput(io.MultiWriter(os.Stderr, logBuf))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status := web.NewStatus()
	status.SetStatic(cfg.DeviceName, buildVersion(), cfg.Tiles.Dir)

	rt, err := newDeviceRuntime(ctx, cfg, configPath, status)
	if err != nil {
		log.Fatalf("runtime init failed: %v", err)
	}
	defer rt.Close()

	log.Printf("ronald-ng starting device=%s source=%s", cfg.DeviceName, cfg.Ingest.Source)
	log.Printf("web listen=%s", cfg.Web.Listen)

	go func() {
		err := web.Serve(ctx, cfg.Web.Listen, rt.webConfig(logBuf))
		if err != nil && ctx.Err() == nil {
			log.Printf("web server stopped: %v", err)
			cancel()
		}
	}()

	if err := rt.run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("runtime stopped: %v", err)
	}
	log.Printf("ronald-ng stopping")
}

func buildVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
