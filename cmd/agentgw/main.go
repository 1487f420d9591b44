// Command agentgw boots the conversational agent gateway: it wires
// configuration, the prompt store, the two-tier cache, history, the RAG
// engine and LLM adapters into an Agent, then serves the WebSocket chat
// transport and the control-plane HTTP endpoint side by side.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"agentgw/internal/agent"
	"agentgw/internal/cache"
	"agentgw/internal/config"
	"agentgw/internal/history"
	"agentgw/internal/httpapi"
	"agentgw/internal/llm/embedder"
	"agentgw/internal/llm/providers"
	"agentgw/internal/logging"
	"agentgw/internal/prompts"
	"agentgw/internal/rag"
	"agentgw/internal/transport"
	"agentgw/internal/vectordb"
)

func main() {
	if err := run(); err != nil {
		logging.Log.Fatal().Err(err).Msg("agentgw exited")
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.Component("bootstrap")

	promptStore, err := prompts.Build(cfg.RemotePrompts)
	if err != nil {
		return fmt.Errorf("build prompt store: %w", err)
	}

	vstore, err := vectordb.Open(cfg.Vector.URL)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	emb := embedder.NewClient(cfg.LLM.Embedding.BaseURL, cfg.LLM.Embedding.APIKey, cfg.LLM.Embedding.Model, cfg.Vector.Dimension)

	respCache, err := cache.New(cfg.Cache, vstore, cfg.Vector.Dimension)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	ctx := context.Background()
	historyStore, err := history.Build(ctx, cfg.History, vstore, emb)
	if err != nil {
		return fmt.Errorf("build history store: %w", err)
	}

	chatLLM, err := providers.Build(ctx, cfg.LLM.Chat)
	if err != nil {
		return fmt.Errorf("build chat llm: %w", err)
	}
	queryLLM, err := providers.Build(ctx, cfg.LLM.Query)
	if err != nil {
		return fmt.Errorf("build query llm: %w", err)
	}

	schemas, err := rag.LoadSchemas(cfg.RAG.SchemaPath)
	if err != nil {
		return fmt.Errorf("load rag schemas: %w", err)
	}
	ragEngine := rag.NewEngine(schemas, cfg.RAG.SchemaPath)
	ragEngine.Store = vstore
	ragEngine.Chat = queryLLM
	ragEngine.Embedder = emb
	ragEngine.Prompts = promptStore
	ragEngine.DefaultLimit = cfg.RAG.DefaultLimit
	ragEngine.UseLLMFieldSel = cfg.RAG.UseLLMFieldSel

	ag := &agent.Agent{
		Prompts:      promptStore,
		Cache:        respCache,
		History:      historyStore,
		Chat:         chatLLM,
		Embedder:     emb,
		RAG:          ragEngine,
		RecentLength: cfg.History.RecentLength,
	}

	wsServer := transport.NewServer(cfg.Server.Addr, cfg.Server.APIKey, cfg.Server.EnableTLS, cfg.Server.TLSCertPath, cfg.Server.TLSKeyPath, ag)
	controlPlane := httpapi.NewServer(promptStore)

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("tls", cfg.Server.EnableTLS).Msg("chat_transport_listening")
		errs <- wsServer.ListenAndServe()
	}()
	go func() {
		addr := ":" + cfg.Server.HTTPPort
		log.Info().Str("addr", addr).Msg("control_plane_listening")
		httpSrv := &http.Server{Addr: addr, Handler: controlPlane}
		if cfg.Server.EnableTLS {
			tlsCfg, err := wsServer.TLSConfig()
			if err != nil {
				errs <- fmt.Errorf("control plane tls config: %w", err)
				return
			}
			httpSrv.TLSConfig = tlsCfg
			errs <- httpSrv.ListenAndServeTLS("", "")
			return
		}
		errs <- httpSrv.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		log.Info().Msg("shutdown_signal_received")
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	}
}
