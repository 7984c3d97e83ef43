// Command filingqa asks a single question about one filing and prints the
// answer together with the retrieved context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tenqlab/filingqa/internal/application"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to the run configuration")
		envPath    = flag.String("env", ".env", "Path to the dotenv credentials file")
		document   = flag.String("document", "", "Path to the filing PDF")
		query      = flag.String("query", "", "Question to ask about the filing")
		showCtx    = flag.Bool("context", false, "Print the retrieved context nodes")
	)
	flag.Parse()

	if *document == "" || *query == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := application.LoadEnv(*envPath); err != nil {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	cfg, err := application.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pipeline, err := application.BuildPipeline(cfg, *document)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answer, err := pipeline.Engine.Answer(ctx, *query)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}

	fmt.Println(answer.Text)

	if *showCtx {
		fmt.Printf("\n--- Retrieved context (%d nodes) ---\n", len(answer.Context))
		for i, node := range answer.Context {
			fmt.Printf("\n[%d] %s\n", i+1, strings.TrimSpace(node))
		}
	}
}
