package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yun-ni-2024/ai-assistant-app/internal/config"
	"github.com/yun-ni-2024/ai-assistant-app/internal/handler"
	"github.com/yun-ni-2024/ai-assistant-app/internal/service/ai"
	chatservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/chat"
	streamservice "github.com/yun-ni-2024/ai-assistant-app/internal/service/stream"
	"github.com/yun-ni-2024/ai-assistant-app/internal/store"
	"github.com/yun-ni-2024/ai-assistant-app/internal/tool"
	"github.com/yun-ni-2024/ai-assistant-app/internal/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Chat.DatabasePath), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	sqliteStore, err := store.OpenSQLite(cfg.Chat.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sqliteStore.Close()

	uploads, err := upload.NewStore(cfg.Tools.UploadDir, cfg.Tools.MaxUploadSize)
	if err != nil {
		log.Fatalf("failed to initialize upload store: %v", err)
	}

	// A duplicate or unknown tool name in the catalog is a startup error.
	catalog, err := tool.LoadCatalog(cfg.Tools.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load tool catalog: %v", err)
	}
	registry, err := tool.NewRegistry(catalog, tool.Deps{
		Client:         &http.Client{},
		Uploads:        uploads,
		SearchAPIKey:   cfg.Tools.SearchAPIKey,
		SearchEngineID: cfg.Tools.SearchEngineID,
		SearchBaseURL:  cfg.Tools.SearchBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to build tool registry: %v", err)
	}

	// Provider choice is a configuration-time decision; without Ark
	// credentials the deterministic echo fallback keeps the pipeline alive.
	var provider ai.Provider
	if cfg.AI.Enabled() {
		arkProvider, err := ai.NewArkProvider(ctx, cfg.AI)
		if err != nil {
			log.Fatalf("failed to initialize ark provider: %v", err)
		}
		provider = arkProvider
		log.Println("AI provider initialized: ark")
	} else {
		provider = ai.NewEchoProvider()
		log.Println("Ark 凭证未配置，使用本地回显模型")
	}

	chatSvc := chatservice.NewService(sqliteStore)
	assembler := ai.NewAssembler(cfg.Chat.DefaultSystemPrompt, cfg.Chat.ContextCharBudget)
	orchestrator := streamservice.New(chatSvc, registry, tool.NewRuleSelector(), assembler, provider,
		cfg.Chat.StreamTTL, cfg.Chat.ProviderTimeout)
	orchestrator.StartSweeper(ctx)

	router := handler.NewRouter(handler.RouterDeps{
		Orchestrator:  orchestrator,
		ChatSvc:       chatSvc,
		Registry:      registry,
		Uploads:       uploads,
		MaxUploadSize: cfg.Tools.MaxUploadSize,
		CORSOrigins:   cfg.Server.CORSOrigins,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("assistant backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
