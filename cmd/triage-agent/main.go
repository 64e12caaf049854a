// cmd/triage-agent/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "helpdesk-workers/internal/common/aws"
	"helpdesk-workers/internal/common/config"
	"helpdesk-workers/internal/common/database"
	"helpdesk-workers/internal/common/logger"
	"helpdesk-workers/internal/common/observability"
	"helpdesk-workers/internal/classifier"
	"helpdesk-workers/internal/escalation"
	"helpdesk-workers/internal/models"
	"helpdesk-workers/internal/notify"
	"helpdesk-workers/internal/pipeline"
	"helpdesk-workers/internal/retrieval"
	"helpdesk-workers/internal/similarity"
	"helpdesk-workers/internal/store"
	"helpdesk-workers/internal/suggestion"
	"helpdesk-workers/internal/vectorizer"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting triage agent...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional backend; the chain degrades without it) ---
	var esClient *database.ElasticsearchClient
	esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		zapLog.Warn("elasticsearch client init failed, running on local search only", zap.Error(err))
		esClient = nil
	}

	// --- Stores ---
	articles := store.NewArticleStore(pg.DB, log)
	tickets := store.NewTicketStore(pg.DB, log)
	users := store.NewUserStore(pg.DB, log)
	suggestions := store.NewSuggestionStore(pg.DB, log)
	audit := store.NewAuditStore(pg.DB, log)

	// --- Vector engine ---
	vec := vectorizer.New(cfg.Embedding.Dimension)
	simStore := similarity.NewStore(similarity.Config{
		Dimension:           cfg.Embedding.Dimension,
		ChunkSize:           cfg.Embedding.ChunkSize,
		ChunkOverlap:        cfg.Embedding.ChunkOverlap,
		ChunkThreshold:      cfg.Embedding.ChunkThreshold,
		SimilarityThreshold: cfg.Embedding.SimilarityThreshold,
		ModelTag:            cfg.Embedding.ModelTag,
	}, vec, redisClient.Client, log)
	if err := simStore.Warm(ctx); err != nil {
		zapLog.Warn("similarity index warm-up failed", zap.Error(err))
	}

	// --- Retrieval ---
	var backend retrieval.BackendSearcher
	var probe retrieval.Availability
	if esClient != nil {
		be := retrieval.NewBackend(esClient.Client, cfg.Database.Elasticsearch.ArticleIndex, log)
		backend = be
		probe = retrieval.NewAvailabilityProbe(
			be,
			time.Duration(cfg.Retrieval.ProbeTTLSeconds)*time.Second,
			config.GetDuration(cfg.Retrieval.ProbeTimeoutMs),
			log,
		)
	}
	orchestrator := retrieval.NewOrchestrator(retrieval.Config{
		DefaultLimit:        cfg.Retrieval.DefaultLimit,
		HybridVectorWeight:  cfg.Retrieval.HybridVectorWeight,
		SimilarityThreshold: cfg.Embedding.SimilarityThreshold,
	}, backend, probe, simStore, vec, articles, log)

	// --- Notifications ---
	sinks := buildSinks(ctx, cfg, users, zapLog, log)
	outbox := notify.NewOutbox(cfg.Notifications.OutboxSize, log, sinks...)
	outbox.Start()

	// --- Services ---
	cls := classifier.New()
	drafter := classifier.NewDrafter(cls)

	suggestionSvc := suggestion.NewService(
		suggestion.Config{AutoCloseConfidence: cfg.Triage.AutoCloseConfidence},
		suggestions, tickets, outbox, redisClient.Client, log,
	)

	engine := escalation.NewEngine(escalation.Config{
		Enabled:            cfg.Triage.EscalationEnabled,
		SLAHours:           float64(cfg.Triage.SLAHours),
		LowConfidence:      cfg.Triage.LowConfidence,
		CriticalConfidence: cfg.Triage.CriticalConfidence,
		SweepBatchSize:     cfg.Triage.SweepBatchSize,
	}, &escalation.Deps{
		Tickets:  tickets,
		Users:    users,
		Notifier: outbox,
		Audit:    audit,
	}, suggestions, log)

	triage := pipeline.NewTriage(pipeline.Config{
		AutoCloseConfidence: cfg.Triage.AutoCloseConfidence,
		RetrievalLimit:      cfg.Retrieval.DefaultLimit,
		MaxContextTokens:    cfg.Retrieval.MaxContextTokens,
	}, tickets, cls, drafter, orchestrator, suggestionSvc, engine, outbox, audit, obs, log)

	indexer := pipeline.NewIndexer(articles, simStore, 256,
		config.GetDuration(cfg.Embedding.BatchPauseMs), log)
	indexer.Start()

	// --- Metrics / health listener ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if err := pg.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["postgres"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})
	server := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}
	go func() {
		zapLog.Info("metrics listener started", zap.String("address", cfg.Metrics.ListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics listener failed", zap.Error(err))
		}
	}()

	// --- Periodic escalation sweep ---
	sweepInterval := time.Duration(cfg.Triage.SweepIntervalMin) * time.Minute
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := engine.RunPeriodicSweep(ctx)
				if err != nil {
					zapLog.Error("escalation sweep failed", zap.Error(err))
					continue
				}
				zapLog.Info("escalation sweep done",
					zap.Int("processed", result.Processed),
					zap.Int("escalated", result.Escalated),
				)
			}
		}
	}()

	// --- Triage poll loop: pick up open tickets and run the pipeline ---
	go runTriageLoop(ctx, tickets, triage, cfg.Triage.SweepBatchSize, zapLog)

	zapLog.Info("Triage agent running. Press Ctrl+C to exit.")
	<-ctx.Done()

	zapLog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("metrics listener shutdown failed", zap.Error(err))
	}
	if err := indexer.Close(shutdownCtx); err != nil {
		zapLog.Warn("embedding indexer drain incomplete", zap.Error(err))
	}
	if err := outbox.Close(shutdownCtx); err != nil {
		zapLog.Warn("notification outbox drain incomplete", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

// runTriageLoop polls for open tickets and feeds them through the pipeline.
func runTriageLoop(ctx context.Context, tickets *store.TicketStore, triage *pipeline.Triage, batchSize int, zapLog *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := tickets.ListOpenForSweep(ctx, batchSize)
			if err != nil {
				zapLog.Error("ticket poll failed", zap.Error(err))
				continue
			}
			for _, t := range batch {
				if t.Status != models.TicketStatusOpen {
					continue
				}
				if _, err := triage.Run(ctx, t.ID); err != nil {
					zapLog.Warn("triage failed",
						zap.String("ticketId", t.ID),
						zap.Error(err),
					)
				}
			}
		}
	}
}

// buildSinks assembles the delivery channels enabled by configuration,
// falling back to log-only delivery when none are.
func buildSinks(ctx context.Context, cfg *config.Config, users *store.UserStore, zapLog *zap.Logger, log logger.Logger) []notify.Sink {
	var sinks []notify.Sink

	if cfg.Notifications.Email.Enabled {
		ses, err := commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
		if err != nil {
			zapLog.Warn("SES client init failed, email notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewEmailSink(ses, users))
		}
	}

	if cfg.Notifications.SMS.Enabled {
		sns, err := commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("SNS client init failed, topic notifications disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewTopicSink(sns, cfg.Notifications.SMS.TopicARN))
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, notify.NewLogSink(log))
	}
	return sinks
}
