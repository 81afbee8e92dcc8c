// Command hem serves the HEM brightness analysis over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/hem.analyzer/internal/api"
	"github.com/banshee-data/hem.analyzer/internal/config"
	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/monitoring"
	"github.com/banshee-data/hem.analyzer/internal/version"
	"github.com/banshee-data/hem.analyzer/internal/video"
)

// Config holds the server flags.
type Config struct {
	Listen      string
	TuningFile  string
	FFmpegPath  string
	FFprobePath string
	Backend     string
	MaxUploadMB int64
	Diag        bool
	Trace       bool
	ShowVersion bool
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.Listen, "listen", ":8421", "Listen address")
	fs.StringVar(&cfg.TuningFile, "config", "", "Tuning JSON file (defaults to the built-in values)")
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", "", "Path to ffmpeg (default: from PATH)")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", "", "Path to ffprobe (default: from PATH)")
	fs.StringVar(&cfg.Backend, "backend", "", "Video backend: ffmpeg or gocv (default: gocv when compiled in)")
	fs.Int64Var(&cfg.MaxUploadMB, "max-upload-mb", api.DefaultMaxUploadBytes>>20, "Largest accepted upload in MiB")
	fs.BoolVar(&cfg.Diag, "diag", false, "Log per-request analysis summaries")
	fs.BoolVar(&cfg.Trace, "trace", false, "Log per-frame telemetry")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Listen == "" {
		return Config{}, fmt.Errorf("listen address is required")
	}
	if cfg.MaxUploadMB <= 0 {
		return Config{}, fmt.Errorf("max-upload-mb must be positive, got %d", cfg.MaxUploadMB)
	}
	return cfg, nil
}

// logWriters routes the analysis log streams through monitoring.Logf.
func logWriters(cfg Config) hem.LogWriters {
	w := hem.LogWriters{Ops: monitoring.LogfWriter{Prefix: "ops: "}}
	if cfg.Diag {
		w.Diag = monitoring.LogfWriter{Prefix: "diag: "}
	}
	if cfg.Trace {
		w.Trace = monitoring.LogfWriter{Prefix: "trace: "}
	}
	return w
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if cfg.ShowVersion {
		fmt.Println(version.String())
		return
	}

	hem.SetLogWriters(logWriters(cfg))

	tuning, err := loadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	opener := api.VideoOpener(video.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Backend:     cfg.Backend,
	})
	srv := api.NewServer(tuning, opener, monitoring.NewMetrics())
	srv.MaxUploadBytes = cfg.MaxUploadMB << 20

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Handler(),
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("hem %s listening on %s", version.String(), cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Analyses in flight get a few seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
