package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pep299/article-classifier-proxy/internal/apperr"
	"github.com/pep299/article-classifier-proxy/internal/config"
	"github.com/pep299/article-classifier-proxy/internal/handlers"
)

func main() {
	method := flag.String("method", "", "Run a single prediction method instead of the whole analysis")
	methodsOnly := flag.Bool("methods-only", false, "Run every prediction method, without entities and themes")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <article-url>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	articleURL := flag.Arg(0)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create server instance (contains all the clients)
	server, err := handlers.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	proxy := server.Proxy()

	ctx := context.Background()

	var result interface{}
	switch {
	case *method != "":
		result, err = proxy.Predict(ctx, articleURL, *method)
	case *methodsOnly:
		result, err = proxy.PredictAll(ctx, articleURL)
	default:
		result, err = proxy.Analyze(ctx, articleURL)
	}
	if err != nil {
		log.Fatalf("Analysis failed (%s): %v", apperr.KindOf(err), err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("Encoding result failed: %v", err)
	}
}
