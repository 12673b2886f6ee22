package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/patent-diagram-mcp/internal/annotate"
	"github.com/ironsheep/patent-diagram-mcp/internal/config"
	"github.com/ironsheep/patent-diagram-mcp/internal/detection"
	"github.com/ironsheep/patent-diagram-mcp/internal/generation"
	"github.com/ironsheep/patent-diagram-mcp/internal/observability"
	"github.com/ironsheep/patent-diagram-mcp/internal/ocr"
	"github.com/ironsheep/patent-diagram-mcp/internal/pipeline"
	"github.com/ironsheep/patent-diagram-mcp/internal/server"
	"github.com/ironsheep/patent-diagram-mcp/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("patent-diagram-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("patent-diagram-mcp - MCP server for patent diagram generation and annotation")
			fmt.Println()
			fmt.Println("Usage: patent-diagram-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  DIAGRAM_MCP_CONFIG=<file>           YAML configuration file")
			fmt.Println("  DIAGRAM_MCP_LOG_LEVEL=debug         Log level (debug, info, warn, error)")
			fmt.Println("  DIAGRAM_MCP_GENERATION_KEY=<key>    API key for the rendering service")
			fmt.Println("  DIAGRAM_MCP_GENERATION_URL=<url>    Rendering endpoint")
			fmt.Println("  DIAGRAM_MCP_VISION_ENABLED=true     Use an Ollama vision model for segmentation")
			fmt.Println("  DIAGRAM_MCP_OLLAMA_URL=<url>        Ollama server")
			fmt.Println("  DIAGRAM_MCP_VISION_MODEL=<model>    Ollama vision model")
			fmt.Println("  DIAGRAM_MCP_OCR_ENABLED=true        Avoid existing text when re-annotating")
			fmt.Println("  DIAGRAM_MCP_WORKERS=<n>             Concurrent CPU-bound stages")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger := observability.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags), observability.ParseLevel(cfg.LogLevel))
	logger.Debug("starting patent-diagram-mcp",
		observability.String("version", Version),
		observability.String("build_time", BuildTime),
		observability.String("commit", GitCommit))

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(p, server.WithLogger(logger), server.WithVersion(Version))
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", err)
	}
}

func buildPipeline(cfg *config.Config, logger observability.Logger) (*pipeline.Pipeline, error) {
	if cfg.Generation.APIKey == "" {
		logger.Warn("no generation API key configured, diagram_generate will fail")
	}
	renderer := generation.NewClient(generation.Options{
		Endpoint:     cfg.Generation.Endpoint,
		APIKey:       cfg.Generation.APIKey,
		Timeout:      time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		OutputFormat: cfg.Generation.OutputFormat,
	})

	var model *detection.ModelHandle
	if cfg.Vision.Enabled {
		client, err := vision.NewClient(vision.Options{
			URL:          cfg.Vision.URL,
			Model:        cfg.Vision.Model,
			Timeout:      time.Duration(cfg.Vision.TimeoutSeconds) * time.Second,
			MaxDimension: cfg.Vision.MaxDimension,
		})
		if err != nil {
			return nil, fmt.Errorf("vision client: %w", err)
		}
		model = detection.NewModelHandle(client.Loader())
		logger.Info("segmentation enabled", observability.String("model", cfg.Vision.Model))
	}

	opts := pipeline.Options{
		Renderer: renderer,
		Model:    model,
		Logger:   logger,
		Workers:  cfg.Pipeline.Workers,
		Style: annotate.Style{
			FontFamily:  cfg.Annotation.FontFamily,
			FontSize:    cfg.Annotation.FontSize,
			LabelFill:   cfg.Annotation.LabelFill,
			LabelStroke: cfg.Annotation.LabelStroke,
			LineColor:   cfg.Annotation.LineColor,
		},
		VectorizeThreshold: cfg.Pipeline.VectorizeThreshold,
		MinComponentArea:   cfg.Pipeline.MinComponentArea,
		MaxComponents:      cfg.Pipeline.MaxComponents,
		SketchMaxDimension: cfg.Pipeline.SketchMaxDimension,
	}

	if cfg.OCR.Enabled {
		reader := ocr.NewReader(ocr.Options{Language: cfg.OCR.Language, MinConfidence: cfg.OCR.MinConfidence})
		if reader.Available() {
			opts.TextFinder = reader
		} else {
			logger.Warn("ocr enabled but this build has no Tesseract support")
		}
	}

	return pipeline.New(opts)
}
