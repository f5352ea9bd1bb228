package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rolegate/rolegate/pkg/bot"
	"github.com/rolegate/rolegate/pkg/config"
	"github.com/rolegate/rolegate/pkg/discord"
	"github.com/rolegate/rolegate/pkg/keycloak"
	"github.com/rolegate/rolegate/pkg/observability"
	"github.com/rolegate/rolegate/pkg/roles"
	"github.com/rolegate/rolegate/pkg/store"
	"github.com/rolegate/rolegate/pkg/verify"
	"github.com/rolegate/rolegate/pkg/web"
)

func main() {
	startup := logrus.New()
	startup.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisStore, err := store.NewRedisStore(store.RedisConfig{
		URL:        cfg.Store.RedisURL,
		Password:   cfg.Store.RedisPassword,
		DB:         cfg.Store.RedisDB,
		MaxRetries: cfg.Store.RedisMaxRetries,
		PoolSize:   cfg.Store.RedisPoolSize,
	})
	if err != nil {
		startup.Fatalf("Failed to connect to Redis: %v", err)
	}

	var backing store.Store = redisStore
	if cfg.Store.CacheEnabled {
		backing = store.NewCachedStore(redisStore, cfg.Store.CacheSize, cfg.Store.CacheTTL)
	}
	backing = store.NewInstrumentedStore(backing, metrics.StoreOperationsTotal, metrics.StoreErrorsTotal)
	defer backing.Close()

	if err := backing.Ping(ctx); err != nil {
		startup.Fatalf("Failed to ping Redis: %v", err)
	}
	startup.Printf("Connected to Redis at %s", cfg.Store.RedisURL)

	admin, err := keycloak.NewClient(ctx, keycloak.ClientConfig{
		BaseURL:      cfg.Keycloak.URL,
		Realm:        cfg.Keycloak.Realm,
		ClientID:     cfg.Keycloak.AdminClientID,
		ClientSecret: cfg.Keycloak.AdminClientSecret,
	})
	if err != nil {
		startup.Fatalf("Failed to create Keycloak admin client: %v", err)
	}
	if err := admin.Validate(ctx); err != nil {
		// Keycloak may still be starting. Calls retry naturally.
		startup.Warnf("Keycloak admin API not reachable yet: %v", err)
	}

	auth, err := web.NewOIDC(ctx, web.OIDCConfig{
		IssuerURL:       cfg.Keycloak.IssuerURL(),
		ClientID:        cfg.Keycloak.OIDCClientID,
		ClientSecret:    cfg.Keycloak.OIDCClientSecret,
		RedirectURL:     cfg.Server.AppURL + "/auth/callback",
		LinkRedirectURL: cfg.Server.AppURL + "/link-callback",
	})
	if err != nil {
		startup.Fatalf("Failed to discover OIDC provider: %v", err)
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		startup.Fatalf("Failed to create Discord session: %v", err)
	}

	pending := verify.NewPendingRegistry(backing, logger)
	links := verify.NewIdentityLinks(backing)
	queue := verify.NewCompletionQueue()
	linker := verify.NewLinker(pending, admin, queue, logger, metrics, auth.LinkAuthURL)

	resolver := roles.NewResolver(backing, session, logger)
	reconciler := roles.NewReconciler(backing, session, resolver, logger, metrics)
	sessions := roles.NewSessionTable()

	handler := bot.NewHandler(bot.HandlerParams{
		Store:      backing,
		Registry:   pending,
		Links:      links,
		Resolver:   resolver,
		Reconciler: reconciler,
		Sessions:   sessions,
		Directory:  admin,
		Client:     session,
		Logger:     logger,
		Metrics:    metrics,
		AppURL:     cfg.Server.AppURL,
	})
	gateway := bot.NewGateway(session, handler, logger)
	consumer := bot.NewConsumer(queue, resolver, links, admin, session, logger, metrics)

	server := web.NewServer(web.ServerParams{
		Config:         cfg.Server,
		Auth:           auth,
		Linker:         linker,
		Registry:       pending,
		Logger:         logger,
		Metrics:        metrics,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
		CookieSecret:   cfg.Keycloak.OIDCClientSecret,
	})

	if err := gateway.Start(); err != nil {
		startup.Fatalf("Failed to connect to Discord gateway: %v", err)
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1m", func() {
		if n := sessions.SweepExpired(); n > 0 {
			logger.WithField("count", n).Info("Swept expired setup sessions")
		}
	}); err != nil {
		startup.Fatalf("Failed to schedule session sweep: %v", err)
	}
	sweeper.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		// The consumer runs on a background context and exits by
		// draining the queue, so completions accepted before the
		// signal still apply their role changes.
		return consumer.Run(context.Background())
	})
	g.Go(func() error {
		<-gctx.Done()
		queue.Close()
		return nil
	})

	startup.Printf("rolegate listening on %s:%s", cfg.Server.Host, cfg.Server.Port)

	err = g.Wait()

	<-sweeper.Stop().Done()
	if stopErr := gateway.Stop(); stopErr != nil {
		startup.Warnf("Error closing Discord gateway: %v", stopErr)
	}

	if err != nil {
		startup.Fatalf("Server error: %v", err)
	}
	startup.Println("Shutdown complete")
}
