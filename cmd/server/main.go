// Command server wires the wallet core and serves its HTTP API. Business
// logic lives in the internal service packages; main only composes them.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	accountservice "monedero/internal/account/service"
	accountstore "monedero/internal/account/store"
	"monedero/internal/audit"
	cardmetrics "monedero/internal/card/metrics"
	cardservice "monedero/internal/card/service"
	cardstore "monedero/internal/card/store"
	clientstore "monedero/internal/client/store"
	"monedero/internal/delivery"
	"monedero/internal/errorcatalog"
	"monedero/internal/lockout"
	"monedero/internal/platform/config"
	"monedero/internal/platform/httpserver"
	"monedero/internal/platform/logger"
	"monedero/internal/platform/metrics"
	redisplatform "monedero/internal/platform/redis"
	"monedero/internal/registration"
	regmetrics "monedero/internal/registration/metrics"
	"monedero/internal/token"
	httptransport "monedero/internal/transport/http"
	userstore "monedero/internal/user/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.Environment)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Postgres backs users and cards when a database is configured;
	// everything falls back to memory for local runs.
	var (
		users    registration.UserStore      = userstore.NewInMemory()
		cards    cardservice.CardStore       = cardstore.NewInMemory()
		clients  registration.ClientStore    = clientstore.NewInMemory()
		accounts accountservice.AccountStore = accountstore.NewInMemory()
	)
	if cfg.DB.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		users = userstore.NewPostgres(pool)
		cards = cardstore.NewPostgres(pool)
		log.Info("using postgres for users and cards")
	}

	// Lockout counters live in redis when available so the window survives
	// restarts and is shared across replicas.
	var attemptStore lockout.AttemptStore = lockout.NewMemoryStore()
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		attemptStore = lockout.NewRedisStore(redisClient.Client)
		log.Info("using redis for lockout counters")
	}
	guard := lockout.New(attemptStore,
		lockout.WithMaxAttempts(cfg.Lockout.MaxAttempts),
		lockout.WithWindow(cfg.Lockout.Window),
	)

	// Audit trail. Emitters write into a channel; the worker drains it into
	// kafka, or into memory when no brokers are configured.
	var sink audit.Store = audit.NewMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		sink = kafkaStore
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.AuditTopic)
	}
	inbox := make(chan audit.Event, 256)
	publisher := audit.NewPublisher(audit.NewChannelStore(inbox))
	worker := audit.NewWorker(sink, inbox)

	// Verification codes go out through mailersend in production; the log
	// transport keeps local onboarding usable without credentials.
	var transport delivery.Transport = &delivery.LogTransport{Channel: "dev", Logger: log}
	if cfg.Mailer.APIKey != "" {
		transport = delivery.NewMailerSendTransport(cfg.Mailer.APIKey, cfg.Mailer.FromName, cfg.Mailer.FromEmail)
	}
	codes := delivery.NewProvider(transport, delivery.NewMemoryCodeStore(), delivery.WithLogger(log))

	registrationSvc := registration.New(users, clients, codes,
		registration.WithLogger(log),
		registration.WithAuditPublisher(publisher),
		registration.WithMetrics(regmetrics.New()),
		registration.WithAttemptGuard(guard),
	)
	accountSvc := accountservice.New(accounts,
		accountservice.WithLogger(log),
		accountservice.WithAuditPublisher(publisher),
	)
	cardSvc := cardservice.New(cards,
		cardservice.WithLogger(log),
		cardservice.WithAuditPublisher(publisher),
		cardservice.WithMetrics(cardmetrics.New()),
	)
	tokens := token.NewService(cfg.Token.SigningKey, cfg.Token.Issuer, cfg.Token.Audience, cfg.Token.TTL)

	catalog := errorcatalog.Default()
	if cfg.Server.ErrorCatalog != "" {
		catalog, err = errorcatalog.Load(cfg.Server.ErrorCatalog)
		if err != nil {
			return err
		}
	}
	router := httptransport.NewRouter(log, metrics.NewHTTP(),
		httptransport.NewRegistrationHandler(registrationSvc, log, catalog, tokens),
		httptransport.NewTokenHandler(registrationSvc, tokens, log, catalog),
		httptransport.NewAccountHandler(accountSvc, log, catalog, tokens),
		httptransport.NewCardHandler(cardSvc, log, catalog, tokens),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting wallet server", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
