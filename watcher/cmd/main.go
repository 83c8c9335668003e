package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ragbot/config"
	"ragbot/extract"
	"ragbot/index"
	"ragbot/ingest"
	"ragbot/model"
	"ragbot/store"
	"ragbot/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	sourceDir := flag.String("source", "watch/source", "directory to watch for new documents")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal("Error loading .env file: ", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("Error connecting to Postgres: ", err)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		log.Fatal("Error creating tables: ", err)
	}

	var embedder model.EmbedderInterface
	if cfg.Model.Provider == "mock" {
		embedder = model.NewMockEmbedder(cfg.Model.EmbeddingDim)
	} else {
		embedder = model.NewOllamaEmbedder(cfg.Model.URL, cfg.Model.EmbedModel)
	}

	indexes := []index.Store{
		index.NewLexical(db),
		index.NewVector(db, embedder),
		index.NewGraph(db),
	}
	ingester := ingest.New(db, extract.New(), indexes, ingest.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
	})

	w, err := watcher.New(watcher.Config{SourceDir: *sourceDir})
	if err != nil {
		log.Fatal("Error creating watcher: ", err)
	}

	done := make(chan struct{})
	go func() {
		watcher.NewService(db, ingester, w).Run(ctx)
		close(done)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("Received shutdown signal, shutting down watcher...")
	cancel()
	<-done
}
