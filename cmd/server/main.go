// Package main implements the voyago HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voyago-ai/voyago"
	"github.com/voyago-ai/voyago/internal/cache"
	"github.com/voyago-ai/voyago/internal/catalog"
	"github.com/voyago-ai/voyago/internal/config"
	"github.com/voyago-ai/voyago/internal/eventbus"
	"github.com/voyago-ai/voyago/internal/executor"
	"github.com/voyago-ai/voyago/internal/logger"
	"github.com/voyago-ai/voyago/internal/planner"
	"github.com/voyago-ai/voyago/internal/protocol"
	"github.com/voyago-ai/voyago/internal/providers"
	"github.com/voyago-ai/voyago/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Planner.APIKey == "" {
		return fmt.Errorf("planner api key is not set (VOYAGO_PLANNER_API_KEY)")
	}
	client := openai.NewClient(cfg.Planner.APIKey)

	entries, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	embedder := catalog.NewOpenAIEmbedder(client, cfg.Gate.EmbeddingModel)
	gate, err := catalog.NewSimilarityGate(ctx, entries, embedder,
		catalog.WithThreshold(cfg.Gate.Threshold),
		catalog.WithGateLogger(log.Named("gate")),
	)
	if err != nil {
		return fmt.Errorf("similarity gate: %w", err)
	}

	tools := providers.SetupTools(
		providers.NewWeatherProvider(cfg.Providers.Latency),
		providers.NewImageProvider(cfg.Providers.Latency),
		providers.NewSearchProvider(cfg.Providers.Latency),
	)
	toolNames := make([]string, 0, len(tools))
	for name := range tools {
		toolNames = append(toolNames, name)
	}
	codec := protocol.NewCodec(toolNames, protocol.WithLogger(log.Named("protocol")))

	planCache := cache.NewInMemoryCache(cfg.Planner.CacheTTL, cache.WithCacheLogger(log.Named("cache")))
	defer planCache.Close()

	turnPlanner, err := planner.NewOpenAIPlanner(client, codec,
		planner.WithModel(cfg.Planner.Model),
		planner.WithCache(planCache),
		planner.WithPlannerLogger(log.Named("planner")),
	)
	if err != nil {
		return fmt.Errorf("planner: %w", err)
	}

	classifier, err := buildClassifier(cfg, client, log)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	// One bus shared by the engine and the executor, so per-call events
	// land next to the turn lifecycle events.
	var bus eventbus.EventBus
	if cfg.EventBus.Enabled {
		channelBus := eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(cfg.EventBus.BufferSize),
			eventbus.WithWorkerCount(cfg.EventBus.WorkerCount),
			eventbus.WithLogger(log.Named("events")),
		)
		defer func() { _ = channelBus.Close() }()
		bus = channelBus
	}

	fanOut := executor.NewExecutor(
		executor.WithMaxWorkers(cfg.Providers.MaxConcurrent),
		executor.WithMaxRetries(cfg.Providers.MaxRetries),
		executor.WithRetryDelay(cfg.Providers.RetryDelay),
		executor.WithCallTimeout(cfg.Providers.CallTimeout),
		executor.WithLogger(log.Named("executor")),
		executor.WithEventBus(bus),
	)

	store, closeStore, err := buildSessionStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := voyago.New(ctx,
		voyago.WithConfig(voyago.Config{
			MaxConcurrentExecutions: cfg.Providers.MaxConcurrent,
			MaxRetries:              cfg.Providers.MaxRetries,
			RetryDelay:              cfg.Providers.RetryDelay,
			CallTimeout:             cfg.Providers.CallTimeout,
			EnableEventBus:          cfg.EventBus.Enabled,
			EventBusBufferSize:      cfg.EventBus.BufferSize,
			EventBusWorkerCount:     cfg.EventBus.WorkerCount,
		}),
		voyago.WithClassifier(classifier),
		voyago.WithGate(gate),
		voyago.WithPlanner(turnPlanner),
		voyago.WithExecutor(fanOut),
		voyago.WithSessionStore(store),
		voyago.WithProtocolHandler(codec),
		voyago.WithTools(tools),
		voyago.WithLogger(log.Named("engine")),
		voyago.WithEventBus(bus),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("POST /v1/query", handleQuery(engine, log))
	mux.HandleFunc("GET /v1/sessions/{id}", handleGetSession(engine))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildClassifier picks the destination classifier per the configured
// mode: the rule classifier extracts with phrase rules, the default
// asks the chat model.
func buildClassifier(cfg *config.Config, client *openai.Client, log *zap.Logger) (voyago.Classifier, error) {
	if cfg.Planner.Classifier == config.ClassifierModeRule {
		return planner.NewRuleClassifier(), nil
	}
	return planner.NewOpenAIClassifier(client,
		planner.WithClassifierModel(cfg.Planner.Model),
		planner.WithClassifierLogger(log.Named("classifier")),
	)
}

func loadCatalog(cfg *config.Config) ([]voyago.CatalogEntry, error) {
	if cfg.Gate.CatalogPath != "" {
		entries, err := catalog.Load(cfg.Gate.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		return entries, nil
	}
	return catalog.Default(), nil
}

func buildSessionStore(cfg *config.Config, log *zap.Logger) (voyago.SessionStore, func(), error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Address,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		store, err := session.NewRedisStore(client,
			session.WithSessionTTL(cfg.Session.Redis.TTL),
			session.WithRedisStoreLogger(log.Named("session")),
		)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("session store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store := session.NewMemoryStore(
			session.WithMaxSessions(cfg.Session.MaxSessions),
			session.WithStoreLogger(log.Named("session")),
		)
		return store, func() {}, nil
	}
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type queryResponse struct {
	SessionID string                   `json:"session_id"`
	Output    *voyago.StructuredOutput `json:"output"`
}

func handleQuery(engine *voyago.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Query == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.NewString()
		}

		output, err := engine.ProcessTurn(r.Context(), req.SessionID, req.Query)
		if err != nil {
			log.Warn("turn failed",
				zap.String("session_id", req.SessionID),
				zap.Error(err))
			status := http.StatusInternalServerError
			var verr *voyago.VoyagoError
			if errors.As(err, &verr) && verr.Code == voyago.ErrCodeCancelled {
				status = http.StatusRequestTimeout
			}
			writeError(w, status, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, queryResponse{SessionID: req.SessionID, Output: output})
	}
}

func handleGetSession(engine *voyago.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.GetSession(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if state == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
