package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"ragbot/app/api"
	"ragbot/config"
	"ragbot/engine"
	"ragbot/extract"
	"ragbot/index"
	"ragbot/ingest"
	"ragbot/model"
	"ragbot/retriever"
	"ragbot/store"
)

var fiberConfig = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	cfg    *config.Config
	app    *fiber.App
	db     *store.PostgresStore
	logger *slog.Logger
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default().With("service", "server"),
	}
}

func (s *Server) Run(ctx context.Context) error {
	db, err := store.NewPostgresStore(ctx, s.cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	s.db = db

	if err := db.Init(ctx); err != nil {
		return err
	}

	llm, embedder, scorer := s.buildModels()

	var (
		lexical = index.NewLexical(db)
		vector  = index.NewVector(db, embedder)
		graph   = index.NewGraph(db)
		indexes = []index.Store{lexical, vector, graph}

		reranker  = retriever.NewReranker(scorer)
		search    = retriever.New(db, lexical, vector, graph, reranker)
		assembler = engine.New(search, llm, s.retrievalDefaults())
		ingester  = ingest.New(db, extract.New(), indexes, ingest.Config{
			ChunkSize:    s.cfg.Chunking.Size,
			ChunkOverlap: s.cfg.Chunking.Overlap,
		})
	)

	// Rebuild the in-memory indexes from whatever is already in the store
	// before taking traffic.
	if err := lexical.IndexAll(ctx); err != nil {
		s.logger.Warn("lexical index warm-up failed", "error", err)
	}
	if err := graph.IndexAll(ctx); err != nil {
		s.logger.Warn("graph index warm-up failed", "error", err)
	}

	var (
		app             = fiber.New(fiberConfig)
		checkHandler    = api.NewCheckHandler()
		searchHandler   = api.NewSearchHandler(search, s.retrievalDefaults())
		chatHandler     = api.NewChatHandler(assembler)
		documentHandler = api.NewDocumentHandler(db, ingester, "uploads")

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	s.app = app

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/search", searchHandler.HandleSearch)
	apiv1.Post("/chat", chatHandler.HandleChat)

	apiv1.Post("/documents", documentHandler.HandleCreate)
	apiv1.Post("/documents/:id/ingest", documentHandler.HandleIngest)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Get("/documents/:id", documentHandler.HandleGet)

	s.logger.Info("server listening", "addr", s.cfg.Server.Addr, "provider", s.cfg.Model.Provider)
	return app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("server shutdown", "error", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Info("server stopped")
}

// buildModels selects the model provider. The mock provider keeps the whole
// stack runnable without any external model service.
func (s *Server) buildModels() (model.LLMConnector, model.EmbedderInterface, model.ScorerInterface) {
	if s.cfg.Model.Provider == "mock" {
		return model.NewMockConnector(), model.NewMockEmbedder(s.cfg.Model.EmbeddingDim), nil
	}
	return model.NewOllamaConnector(s.cfg.Model.URL, s.cfg.Model.ChatModel),
		model.NewOllamaEmbedder(s.cfg.Model.URL, s.cfg.Model.EmbedModel),
		model.NewOllamaScorer(s.cfg.Model.URL, s.cfg.Model.RerankModel)
}

func (s *Server) retrievalDefaults() retriever.Options {
	return retriever.Options{
		Limit:     s.cfg.Retrieval.Limit,
		Hybrid:    s.cfg.Retrieval.Hybrid,
		Graph:     s.cfg.Retrieval.Graph,
		Reranking: s.cfg.Retrieval.Reranking,
	}
}
