package commands

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/internal/telemetry"
	"github.com/shelfd/shelfd/pkg/agent"
	"github.com/shelfd/shelfd/pkg/api"
	"github.com/shelfd/shelfd/pkg/api/handlers"
	"github.com/shelfd/shelfd/pkg/api/middleware"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/cache"
	"github.com/shelfd/shelfd/pkg/config"
	"github.com/shelfd/shelfd/pkg/index/chunker"
	"github.com/shelfd/shelfd/pkg/index/embed"
	"github.com/shelfd/shelfd/pkg/index/extract"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/index/vector"
	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/notify"
	"github.com/shelfd/shelfd/pkg/realtime"
	"github.com/shelfd/shelfd/pkg/share"
	"github.com/shelfd/shelfd/pkg/store/metadata"
	"github.com/shelfd/shelfd/pkg/store/object"
)

var startPidFile string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the shelfd server",
	Long: `Start the shelfd server with the specified configuration.

The server runs in the foreground; use a process supervisor for
background operation.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/shelfd/config.yaml.

Examples:
  # Start with default config location
  shelfd serve

  # Start with custom config file
  shelfd serve --config /etc/shelfd/config.yaml

  # Start with environment variable overrides
  SHELFD_LOGGING_LEVEL=DEBUG shelfd serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&startPidFile, "pid-file", "", "Path to PID file (optional)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "shelfd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "shelfd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	} else {
		logger.Info("Profiling disabled")
	}

	// Prometheus registry shared by all components
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Metadata store
	store, err := metadata.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize metadata store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("metadata store close error", "error", err)
		}
	}()
	logger.Info("Metadata store ready", "type", cfg.Database.Type)

	// Object store
	objects, err := object.New(ctx, object.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		ForcePathStyle:  cfg.Storage.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	logger.Info("Object store ready", "endpoint", cfg.Storage.Endpoint, "region", cfg.Storage.Region)

	// Metadata cache, realtime bus, audit trail, notifications
	metaCache := cache.New(cache.Options{
		DefaultTTL: cfg.Cache.TTL,
		Metrics:    cache.NewPrometheusMetrics(promReg),
	})
	defer metaCache.Close()

	bus := realtime.NewBus(0)
	recorder := audit.NewRecorder(store)
	notifier := notify.NewService(store, bus, nil)

	// Semantic indexing pipeline (optional)
	var (
		indexQueue  library.IndexQueue
		vectors     *vector.Store
		embedClient *embed.Client
	)
	if cfg.Index.Enabled {
		embedClient = embed.New(embed.Config{
			Endpoint: cfg.Index.Embedding.Endpoint,
			Model:    cfg.Index.Embedding.Model,
			Timeout:  cfg.Index.Embedding.Timeout,
		})
		vectors, err = vector.New(cfg.Index.DataPath, true, embedClient)
		if err != nil {
			return fmt.Errorf("failed to open vector store: %w", err)
		}
		converter := extract.NewConverter(cfg.Index.Convert.Endpoint, cfg.Index.Convert.Timeout)

		idx := indexer.New(indexer.Config{
			Workers:   cfg.Index.Workers,
			QueueSize: cfg.Index.QueueSize,
		}, objects, embedClient, vectors, converter, chunker.Config{
			ChunkSizeCode:    cfg.Index.ChunkSizeCode,
			ChunkSizeDocs:    cfg.Index.ChunkSizeDocs,
			ChunkOverlap:     cfg.Index.ChunkOverlap,
			MaxChunksPerFile: cfg.Index.MaxChunksPerFile,
		}, indexer.NewMetrics(promReg))
		idx.Start(ctx)
		defer idx.Close()
		indexQueue = idx

		logger.Info("Semantic indexing enabled",
			"workers", cfg.Index.Workers,
			"data_path", cfg.Index.DataPath,
			"model", cfg.Index.Embedding.Model)
	} else {
		logger.Info("Semantic indexing disabled")
	}

	// Library service
	libraries := library.NewService(store, objects, metaCache, bus, recorder, indexQueue, library.Config{
		BucketPrefix:       cfg.Storage.BucketPrefix,
		MaxFileSizeBytes:   int64(cfg.Storage.MaxFileSize),
		ChunkSizeBytes:     int64(cfg.Storage.ChunkSize),
		TrashRetention:     time.Duration(cfg.Trash.RetentionDays) * 24 * time.Hour,
		UploadExpiry:       cfg.Storage.UploadExpiry,
		PresignedURLExpiry: cfg.Storage.PresignedURLExpiry,
	})

	// Share service. An ephemeral secret keeps dev setups working but
	// invalidates outstanding access tokens on restart.
	secret := []byte(cfg.Share.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate share token secret: %w", err)
		}
		logger.Warn("No share token secret configured; using an ephemeral secret. " +
			"Outstanding share access tokens will not survive a restart.")
	}
	shares, err := share.NewService(store, recorder, notifier, nil, share.Config{
		Secret:         secret,
		ViewTokenTTL:   cfg.Share.ViewTokenTTL,
		ActionTokenTTL: cfg.Share.DownloadTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize share service: %w", err)
	}

	// Agent tool surface
	agentMetrics := agent.NewMetrics(promReg)
	policy := agent.NewPolicyEngine(cfg.Agent.DefaultWriteEnabled)
	for _, p := range cfg.Agent.Policies {
		policy.Set(p.LibraryID, agent.Policy{
			ReadEnabled:   p.ReadEnabled,
			WriteEnabled:  p.WriteEnabled,
			AllowedAgents: p.AllowedAgents,
		})
		logger.Info("agent policy configured",
			"library_id", p.LibraryID, "read", p.ReadEnabled, "write", p.WriteEnabled)
	}
	limiter := agent.NewRateLimiter(cfg.Agent.RateLimitRequests, cfg.Agent.RateLimitWindow)
	registry := agent.NewRegistry()

	if err := agent.NewLibraryTools(libraries, objects, policy).Register(registry); err != nil {
		return fmt.Errorf("failed to register library tools: %w", err)
	}
	if cfg.Index.Enabled {
		vectorTools := agent.NewVectorTools(libraries, vectors, embedClient, policy, agentMetrics, cfg.Index.LowConfidenceThreshold)
		if err := vectorTools.Register(registry); err != nil {
			return fmt.Errorf("failed to register vector tools: %w", err)
		}
	}

	dispatcher := agent.NewDispatcher(registry, limiter, recorder, agentMetrics)
	transport := agent.NewTransport(dispatcher, bus)

	// HTTP API
	router := api.NewRouter(api.Deps{
		Libraries:     libraries,
		Directories:   libraries,
		Files:         libraries,
		Uploads:       libraries,
		Trash:         libraries,
		Shares:        shares,
		Notifications: notifier,
		Audit:         recorder,
		Bus:           bus,
		Auth:          middleware.NewAuthenticator(cfg.Auth),
		AgentRoutes:   transport.Routes(),
		HealthChecks: map[string]handlers.HealthCheck{
			"metadata": func(ctx context.Context) error {
				db, err := store.DB().DB()
				if err != nil {
					return err
				}
				return db.PingContext(ctx)
			},
		},
		RequestTimeout:         cfg.Server.RequestTimeout,
		ShareDefaultExpiryDays: cfg.Share.DefaultExpiryDays,
		ShareMaxExpiryDays:     cfg.Share.MaxExpiryDays,
		SSEHeartbeat:           cfg.Agent.HeartbeatInterval,
	})
	server := api.NewServer(cfg.Server, cfg.ShutdownTimeout, router)

	// Metrics endpoint (if enabled)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info("Metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Background sweeper for expired trash and stale uploads
	go runSweeper(ctx, libraries, cfg.Trash.SweepInterval)

	// Write PID file if specified
	if startPidFile != "" {
		if err := os.WriteFile(startPidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(startPidFile) }()
	}

	// Start the API server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// runSweeper periodically purges expired trash and abandoned uploads.
func runSweeper(ctx context.Context, libraries *library.Service, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := libraries.CleanupExpired(ctx)
			if err != nil {
				logger.Error("trash sweep failed", "error", err)
			} else if purged > 0 {
				logger.Info("trash sweep complete", "purged", purged)
			}
			if swept := libraries.SweepExpiredUploads(ctx); swept > 0 {
				logger.Info("expired uploads swept", "count", swept)
			}
		}
	}
}
