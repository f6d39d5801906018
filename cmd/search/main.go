// Command search runs a single query against an index file and prints the
// ranked URLs, one per line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rdejong/sitesearch/internal/search"
	"github.com/rdejong/sitesearch/pkg/config"
	"github.com/rdejong/sitesearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	indexPath := flag.String("index", "", "index file path (overrides config)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: search [-config file] [-index file] <query words>")
		os.Exit(2)
	}
	query := strings.Join(flag.Args(), " ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath != "" {
		cfg.Index.IndexPath = *indexPath
	}
	logger.Setup("warn", cfg.Logging.Format)

	engine := search.NewEngine(cfg.Index.IndexPath, cfg.Search.Timeout, nil)
	urls, err := engine.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}
	for _, url := range urls {
		fmt.Println(url)
	}
}
