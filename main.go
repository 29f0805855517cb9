package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"stream-classifier/config"
	"stream-classifier/logger"
	"stream-classifier/proxy"
)

func main() {
	// Load .env file if any
	if err := config.LoadEnv(); err != nil {
		log.Printf("⚠️ %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "stream-classifier",
		Usage:   "Classify LLM generation streams into text, reasoning and tool calls",
		Version: GetVersionInfo(),
		Commands: []*cli.Command{
			NewServeCommand(),
			NewClassifyCommand(),
			NewFamiliesCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// NewServeCommand creates the "serve" subcommand running the HTTP server
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the classification HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "Path to the YAML configuration file"},
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override the configured listen port"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if port := cmd.String("port"); port != "" {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	fmt.Println(GetBuildInfo())
	fmt.Println()

	obsLogger, err := logger.NewObservabilityLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize observability logger: %w", err)
	}
	defer obsLogger.Close()
	if err := obsLogger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}

	obsLogger.Info(logger.ComponentConfig, logger.CategoryRequest, "", "Configuration loaded", map[string]interface{}{
		"port":           cfg.Port,
		"default_family": cfg.DefaultFamily,
		"model_rules":    len(cfg.Models),
		"family_configs": len(cfg.Families),
	})

	metrics := proxy.NewMetrics(prometheus.DefaultRegisterer)
	handler := proxy.NewHandler(cfg, metrics, obsLogger)

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/classify", handler.HandleClassify)
	mux.Handle("/metrics", promhttp.Handler())

	// Setup HTTP server with reasonable timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streaming responses
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Printf("🛑 Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Stream classifier listening on http://localhost:%s", cfg.Port)
	obsLogger.Info(logger.ComponentProxy, logger.CategoryRequest, "", "Stream classifier started", map[string]interface{}{
		"address":  fmt.Sprintf("http://localhost:%s", cfg.Port),
		"endpoint": fmt.Sprintf("http://localhost:%s/v1/classify", cfg.Port),
		"version":  GetVersionInfo(),
	})

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		obsLogger.Error(logger.ComponentProxy, logger.CategoryError, "", "Server failed to start", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// handleRoot provides basic information about the service
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
	"service": "Stream Classifier",
	"version": "%s",
	"status": "running",
	"endpoints": [
		"GET /health - Health check",
		"GET /metrics - Prometheus metrics",
		"POST /v1/classify?model=&family= - Classify an OpenAI-compatible SSE stream"
	]
}`, Version)
}

// handleHealth provides a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
	"status": "ok",
	"timestamp": "%s"
}`, time.Now().UTC().Format(time.RFC3339))
}
