package bootstrap

import (
	"context"
	"fmt"

	"brainsync-client/internal/api"
	"brainsync-client/internal/assistant"
	"brainsync-client/internal/cache"
	"brainsync-client/internal/config"
	"brainsync-client/internal/pkg/logger"
	"brainsync-client/internal/quiz"
	"brainsync-client/internal/realtime"
	"brainsync-client/internal/service"
	"brainsync-client/internal/session"
	"brainsync-client/internal/tracer"
)

type Container struct {
	Config *config.Config
	Logger logger.ILogger

	// Session
	Store session.TokenStore
	Guard *session.Guard

	// Data access
	API    *api.Client
	Engine *cache.Engine

	// Services
	AuthService service.IAuthService
	NoteService service.INoteService
	QuizService service.IQuizService

	// Interactive state
	Quiz      *quiz.Machine
	Assistant *assistant.Conversation

	// Realtime
	Consumer      *realtime.Consumer
	Notifications *realtime.ChanNotifier

	realtimeLogger logger.ILogger
	unsubscribe    func()
	shutdownTracer func(context.Context) error
}

type Option func(*options)

type options struct {
	logger         logger.ILogger
	realtimeLogger logger.ILogger
	store          session.TokenStore
	source         realtime.Source
}

// WithLoggers replaces the file-backed loggers.
func WithLoggers(sys, rt logger.ILogger) Option {
	return func(o *options) {
		o.logger = sys
		o.realtimeLogger = rt
	}
}

func WithStore(store session.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithRealtimeSource(src realtime.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// 1. Logging & Tracing
	sysLogger := o.logger
	if sysLogger == nil {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	}
	rtLogger := o.realtimeLogger
	if rtLogger == nil {
		rtLogger = logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)
	}
	shutdownTracer := tracer.Init(ctx, cfg.Tracing, sysLogger)

	// 2. Session
	store := o.store
	if store == nil {
		var err error
		store, err = newStore(cfg.Session)
		if err != nil {
			return nil, err
		}
	}
	guard := session.NewGuard(store, sysLogger)

	// 3. Data access
	client := api.NewClient(cfg.API.BaseURL, guard, sysLogger)
	engine := cache.New(
		cache.WithLogger(sysLogger),
		cache.WithKeepUnusedFor(cfg.Cache.KeepUnusedFor),
		cache.WithRequestTimeout(cfg.API.RequestTimeout),
		cache.WithUnauthorizedHandler(guard.ClearSession),
	)

	// 4. Services
	authService := service.NewAuthService(engine, client, guard, sysLogger)
	noteService := service.NewNoteService(engine, client, guard)
	quizService := service.NewQuizService(engine, client, guard)

	// 5. Realtime
	source := o.source
	if source == nil {
		source = newSource(cfg.Realtime)
	}
	notifications := realtime.NewChanNotifier(32)
	logNotifier := realtime.NewLogNotifier(rtLogger)
	consumer := realtime.NewConsumer(
		source,
		guard,
		engine,
		realtime.NotifierFunc(func(n realtime.Notification) {
			logNotifier.Notify(n)
			notifications.Notify(n)
		}),
		rtLogger,
		realtime.WithBackoff(cfg.Realtime.MinBackoff, cfg.Realtime.MaxBackoff),
		realtime.WithUnauthorizedHandler(guard.ClearSession),
	)

	c := &Container{
		Config:         cfg,
		Logger:         sysLogger,
		Store:          store,
		Guard:          guard,
		API:            client,
		Engine:         engine,
		AuthService:    authService,
		NoteService:    noteService,
		QuizService:    quizService,
		Quiz:           quiz.NewMachine(quizService, sysLogger),
		Assistant:      assistant.NewConversation(noteService, sysLogger),
		Consumer:       consumer,
		Notifications:  notifications,
		realtimeLogger: rtLogger,
		shutdownTracer: shutdownTracer,
	}

	// 6. Session lifecycle: a cleared session closes the push channel and any quiz.
	c.unsubscribe = guard.OnChange(func(s session.Session) {
		if s.IsAuthenticated {
			return
		}
		consumer.Stop()
		c.Quiz.Close()
		c.Assistant.Reset()
	})

	guard.Restore(ctx)
	return c, nil
}

// StartRealtime opens the push channel for the current session. It is a no-op when
// realtime is disabled.
func (c *Container) StartRealtime(ctx context.Context) error {
	if !c.Config.Realtime.Enabled {
		return nil
	}
	return c.Consumer.Start(ctx)
}

func (c *Container) Close(ctx context.Context) {
	c.unsubscribe()
	c.Consumer.Stop()
	c.Quiz.Close()
	c.Engine.Close()

	if closer, ok := c.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			c.Logger.Warn("Bootstrap", "Failed to close session store", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := c.shutdownTracer(ctx); err != nil {
		c.Logger.Warn("Bootstrap", "Failed to shut down tracer", map[string]interface{}{"error": err.Error()})
	}
	_ = c.realtimeLogger.Sync()
	_ = c.Logger.Sync()
}

func newStore(cfg config.SessionConfig) (session.TokenStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(), nil
	case config.StoreRedis:
		store, err := session.NewRedisStore(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		return store, nil
	default:
		return session.NewFileStore(cfg.FilePath), nil
	}
}

func newSource(cfg config.RealtimeConfig) realtime.Source {
	if cfg.Transport == config.TransportNATS {
		return realtime.NewNATSSource(cfg.NatsURL)
	}
	return realtime.NewWebSocketSource(cfg.WSURL)
}
