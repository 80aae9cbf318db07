package daemon

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matheus3301/bossmsg/internal/ai"
	"github.com/matheus3301/bossmsg/internal/api"
	"github.com/matheus3301/bossmsg/internal/bus"
	"github.com/matheus3301/bossmsg/internal/call"
	"github.com/matheus3301/bossmsg/internal/config"
	"github.com/matheus3301/bossmsg/internal/conversation"
	"github.com/matheus3301/bossmsg/internal/lock"
	"github.com/matheus3301/bossmsg/internal/logging"
	"github.com/matheus3301/bossmsg/internal/metrics"
	"github.com/matheus3301/bossmsg/internal/persist"
	"github.com/matheus3301/bossmsg/internal/seed"
	"github.com/matheus3301/bossmsg/internal/session"
	"github.com/matheus3301/bossmsg/internal/store"
	"github.com/matheus3301/bossmsg/internal/story"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Config      *config.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideMetrics,
			provideMetricsServer,
			provideSeed,
			providePersistAdapter,
			provideAIClient,
			provideManager,
			provideSyncer,
			provideCatalogue,
			provideInbox,
			provideOrchestrator,
			provideSessionService,
			provideChatService,
			provideStoryService,
			provideCallService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) *config.Config {
	if p.Config != nil {
		return p.Config
	}
	return config.Default()
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName, "bossd"), p.SessionName, cfg.LogLevel,
		logging.WithProcess("bossd"))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// process holding the session.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Recovered {
		logger.Warn("dirty schema version rolled back", zap.Uint("to", result.From))
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMetrics(b *bus.Bus) *metrics.Metrics {
	m := metrics.New()
	m.WatchDrops(b.Dropped)
	return m
}

func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
	return metrics.NewServer(cfg.Metrics.Addr, m, logger)
}

func provideSeed() (*seed.Data, error) {
	return seed.Load(time.Now())
}

func providePersistAdapter(db *store.DB, logger *zap.Logger) *persist.Adapter {
	return persist.NewAdapter(db, logger)
}

func provideAIClient(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *ai.Client {
	if cfg.AI.APIKey == "" {
		logger.Warn("no API key configured, contact replies will fall back")
	}
	limit := rate.Inf
	if cfg.AI.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.AI.RequestsPerSecond)
	}
	return ai.NewClient(
		ai.Config{APIKey: cfg.AI.APIKey, Endpoint: cfg.AI.Endpoint, Model: cfg.AI.Model},
		ai.WithHTTPClient(&http.Client{Timeout: cfg.AI.RequestTimeout.Duration}),
		ai.WithRetryConfig(ai.RetryConfig{MaxAttempts: cfg.AI.MaxAttempts, BaseDelay: cfg.AI.BaseDelay.Duration}),
		ai.WithLimiter(rate.NewLimiter(limit, max(cfg.AI.Burst, 1))),
		ai.WithObserver(m),
		ai.WithLogger(logger),
	)
}

func provideManager(cfg *config.Config, data *seed.Data, adapter *persist.Adapter, client *ai.Client, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *conversation.Manager {
	return conversation.New(conversation.Options{
		DeliveryDelay:     cfg.Chat.DeliveryDelay.Duration,
		TranslateLanguage: cfg.AI.TranslateLanguage,
		Counter:           m,
	}, data, adapter.Load(), client, client, b, logger)
}

func provideSyncer(adapter *persist.Adapter, conv *conversation.Manager, b *bus.Bus, logger *zap.Logger) *persist.Syncer {
	return persist.NewSyncer(adapter, conv, b, logger)
}

func provideCatalogue(db *store.DB, data *seed.Data, conv *conversation.Manager, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *story.Catalogue {
	return story.NewCatalogue(db, data.Stories, conv, b, m, logger)
}

// provideInbox returns nil when the stories inbox is disabled.
func provideInbox(p Params, cfg *config.Config, stories *story.Catalogue, logger *zap.Logger) *story.Inbox {
	if !cfg.Story.InboxEnabled {
		return nil
	}
	return story.NewInbox(session.StoriesDir(p.SessionName), stories, 0, logger)
}

func provideOrchestrator(cfg *config.Config, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *call.Orchestrator {
	dialer := ai.NewWSDialer(cfg.AI.LiveEndpoint, cfg.AI.APIKey, logger)
	devices := call.NewDevices(call.DeviceConfig{
		Input:  cfg.Call.InputDevice,
		Output: cfg.Call.OutputDevice,
		Camera: cfg.Call.CameraSnapshot,
	})
	return call.New(dialer, devices, b, call.Options{
		InviteDelay:   cfg.Call.InviteDelay.Duration,
		VideoInterval: cfg.Call.VideoInterval.Duration,
		Model:         cfg.AI.LiveModel,
		Counter:       m,
	}, logger)
}

func provideSessionService(p Params, cfg *config.Config, conv *conversation.Manager, stories *story.Catalogue, calls *call.Orchestrator) *api.SessionService {
	return api.NewSessionService(api.SessionInfo{
		Name:         p.SessionName,
		Model:        cfg.AI.Model,
		AIConfigured: cfg.AI.APIKey != "",
	}, conv, stories, calls)
}

func provideChatService(p Params, conv *conversation.Manager, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(conv, b, p.SessionName, logger)
}

func provideStoryService(stories *story.Catalogue) *api.StoryService {
	return api.NewStoryService(stories)
}

func provideCallService(calls *call.Orchestrator, conv *conversation.Manager) *api.CallService {
	return api.NewCallService(calls, conv)
}

type lifecycleDeps struct {
	fx.In

	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Syncer  *persist.Syncer
	Manager *conversation.Manager
	Inbox   *story.Inbox
	Calls   *call.Orchestrator
	Metrics *metrics.Server
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	logger := d.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Persist every state change from here on.
			d.Syncer.Start(context.Background())

			if d.Inbox != nil {
				if err := d.Inbox.Start(context.Background()); err != nil {
					logger.Warn("stories inbox disabled", zap.Error(err))
				}
			}

			if err := d.Metrics.Start(); err != nil {
				return err
			}

			// Start gRPC server in background.
			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Server.Stop(ctx)
			d.Calls.Close()
			if d.Inbox != nil {
				if err := d.Inbox.Stop(); err != nil {
					logger.Warn("error stopping inbox", zap.Error(err))
				}
			}
			d.Manager.Close()
			// Final snapshot after the manager has settled.
			d.Syncer.Stop()
			if err := d.Metrics.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics server", zap.Error(err))
			}
			if err := d.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
