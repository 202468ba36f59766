package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/proctor/internal/config"
	"github.com/your-org/proctor/internal/eventbus"
	"github.com/your-org/proctor/internal/observability"
	"github.com/your-org/proctor/internal/pipeline"
	"github.com/your-org/proctor/internal/transport/ws"
	"github.com/your-org/proctor/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting proctor vision service", "port", cfg.Server.Port)

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init failed", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	registry := vision.NewModelRegistry(cfg.Vision)
	defer registry.Close()

	// Alert publication to NATS is best-effort: a missing or unreachable
	// broker never blocks or alters the per-frame verdict path.
	publisher, err := eventbus.NewPublisher(cfg.NATS.URL, cfg.NATS.AlertSubjectBase)
	if err != nil {
		slog.Warn("alert event publisher unavailable, continuing without it", "error", err)
		publisher = nil
	}
	defer publisher.Close()

	orchestrator := pipeline.NewOrchestrator(registry, cfg.Vision, cfg.Session, publisher)
	defer orchestrator.Close()

	router := ws.NewRouter(ws.RouterConfig{
		MonitorAPIKey: cfg.Server.MonitorAPIKey,
		Orchestrator:  orchestrator,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("proctor server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down proctor server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("proctor server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path for the
// host platform.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
