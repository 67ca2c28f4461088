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

	"github.com/pep299/article-classifier-proxy/internal/config"
	"github.com/pep299/article-classifier-proxy/internal/handlers"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("Article Classifier Proxy Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  API_URL               Prediction backend base URL (required)\n")
		fmt.Printf("  PORT                  Server port (default: 8080)\n")
		fmt.Printf("  HOST                  Server host (default: 0.0.0.0)\n")
		fmt.Printf("  ALLOWED_SOURCE_HOST   Accepted article host (default: www.lejournaldesentreprises.com)\n")
		fmt.Printf("  BACKEND_PAYLOAD       What is sent to the backend: text or url (default: text)\n")
		fmt.Printf("  PREDICTION_METHODS    Comma-separated subset of bert,claude-v1,gpt-4,zeste\n")
		fmt.Printf("  HTTP_TIMEOUT_SECONDS  Outbound request timeout (default: 60)\n")
		fmt.Printf("  MAX_ARTICLE_BYTES     Content API response cap (default: 5242880)\n")
		fmt.Printf("  STATUS_SCHEDULE       Backend status check schedule (default: @every 1m)\n")
		fmt.Printf("  ARTICLE_PROXY_CONFIG  Optional YAML configuration file\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Article Classifier Proxy Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	handlers.Version = Version

	// Create server
	server, err := handlers.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Setup routes
	router := server.SetupRoutes()

	// Prediction calls can take up to the outbound timeout, plus the article fetch
	writeTimeout := 2*cfg.HTTPTimeout() + 10*time.Second

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start backend status checks
	if err := server.Monitor().Start(ctx); err != nil {
		log.Fatalf("Failed to start status checks: %v", err)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	go func() {
		log.Printf("Starting server on %s:%s backend=%s", cfg.Host, cfg.Port, cfg.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down server...")

	// Cancel background tasks
	cancel()
	server.Monitor().Stop()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
