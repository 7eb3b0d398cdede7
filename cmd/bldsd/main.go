package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/baccuslab/blds/internal/acceptor"
	"github.com/baccuslab/blds/internal/config"
	"github.com/baccuslab/blds/internal/coordinator"
	"github.com/baccuslab/blds/internal/logger"
	"github.com/baccuslab/blds/internal/statusapi"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("blds: %v", err)
	}

	logOut, closeLog := openLogOutput(cfg.Quiet)
	defer closeLog()
	lg := logger.New(logOut, slog.LevelInfo)
	slog.SetDefault(lg)

	coord := coordinator.New(coordinator.Config{
		ClientPort:             cfg.ClientPort,
		HTTPPort:               cfg.HTTPPort,
		MaxConnections:         cfg.MaxConnections,
		DefaultRecordingLength: cfg.RecordingLength,
		DefaultReadInterval:    cfg.ReadInterval,
		DefaultSaveDirectory:   cfg.SaveDirectory,
		MaxChunkSize:           cfg.MaxChunkSize,
		SaveFilenameFormat:     config.DefaultSaveFilenameFormat,
	}, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go coord.Run(ctx)

	if cfg.SourcesFile != "" {
		preregisterSources(cfg.SourcesFile, lg)
	}

	clientAddr := fmt.Sprintf(":%d", cfg.ClientPort)
	ln, err := net.Listen("tcp", clientAddr)
	if err != nil {
		log.Fatalf("blds: listen on %s: %v", clientAddr, err)
	}

	a := acceptor.New(coord, cfg.MaxConnections, lg)
	go func() {
		if err := a.Run(ctx, ln); err != nil {
			lg.Error("acceptor stopped", "error", err)
		}
	}()

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: statusapi.NewHandlers(coord).NewServeMux(),
	}

	go func() {
		lg.Info("status endpoint listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("status endpoint failed", "error", err)
		}
	}()

	lg.Info("blds started", "client-port", cfg.ClientPort, "http-port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	cancel()

	if err := httpServer.Shutdown(context.Background()); err != nil {
		lg.Error("status endpoint shutdown error", "error", err)
	}

	lg.Info("blds stopped")
}

// openLogOutput returns the writer logs go to and a cleanup func. --quiet
// redirects to a per-process logfile under $TMPDIR instead of stdout.
func openLogOutput(quiet bool) (io.Writer, func()) {
	if !quiet {
		return os.Stdout, func() {}
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("blds.%d.log", os.Getpid()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("blds: failed to open log file %s, falling back to stdout: %v", path, err)
		return os.Stdout, func() {}
	}
	return f, func() { f.Close() }
}

func preregisterSources(path string, lg *slog.Logger) {
	sources, err := config.LoadSourcesFromYAML(path)
	if err != nil {
		lg.Warn("failed to load sources file", "path", path, "error", err)
		return
	}
	for _, s := range sources {
		lg.Info("pre-registered source available for create-source", "type", s.Type, "location", s.Location)
	}
}
