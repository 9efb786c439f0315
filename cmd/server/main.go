package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	adminhandler "certo/internal/admin/handler"
	"certo/internal/audit"
	"certo/internal/certificate"
	certificatehandler "certo/internal/certificate/handler"
	httpapi "certo/internal/http"
	"certo/internal/patient"
	patienthandler "certo/internal/patient/handler"
	"certo/internal/platform/config"
	"certo/internal/platform/httpserver"
	"certo/internal/platform/logger"
	"certo/internal/platform/metrics"
	"certo/internal/platform/middleware"
	platformredis "certo/internal/platform/redis"
	"certo/internal/provider"
	"certo/internal/provider/authority"
	providerhandler "certo/internal/provider/handler"
	"certo/internal/registry"
	"certo/internal/verification"
	verificationhandler "certo/internal/verification/handler"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	regOpts := []registry.Option{registry.WithMetrics(m)}
	if mirror := registry.NewRedisMirror(redisClient); mirror != nil {
		regOpts = append(regOpts, registry.WithMirror(mirror))
	}
	reg := registry.New(cfg.QuorumThreshold, regOpts...)

	var (
		patientStore      patient.Store      = patient.NewInMemoryStore()
		providerStore     provider.Store     = provider.NewInMemoryStore()
		certStore         certificate.Store  = certificate.NewInMemoryStore()
		verificationStore verification.Store = verification.NewInMemoryStore()
		auditStore        audit.Store        = audit.NewInMemoryStore()
		outboxStore       *audit.PostgresStore
		pool              *pgxpool.Pool
	)

	if cfg.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		providerStore = provider.NewPostgresStore(pool)
		certStore = certificate.NewPostgresStore(pool)

		db, err := audit.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Error("audit store connection failed", "error", err)
			os.Exit(1)
		}
		outboxStore = audit.NewPostgres(db)
		auditStore = outboxStore
	}

	auditor := audit.NewPublisher(auditStore, reg, audit.WithLogger(log))

	var source authority.Source = authority.QuorumApprover{}
	if cfg.AuthorityMode == config.AuthoritySingle {
		source = authority.SingleApprover{Owner: cfg.Owner}
	}

	patients := patient.NewService(patientStore, auditor, cfg.Owner, patient.WithLogger(log))
	providers := provider.NewService(providerStore, reg, source, auditor, cfg.Owner, provider.WithLogger(log))
	certificates := certificate.NewService(certStore, reg, patients, providers, auditor, cfg.Owner,
		certificate.WithLogger(log), certificate.WithMetrics(m))
	verifications := verification.NewService(verificationStore, certStore, patients, reg, auditor, cfg.Owner,
		verification.WithLogger(log), verification.WithMetrics(m))

	health := func(ctx context.Context) error {
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		if pool != nil {
			return pool.Ping(ctx)
		}
		return nil
	}

	jwtValidator := middleware.NewHMACValidator(cfg.JWTSigningKey)
	router := httpapi.NewRouter(health,
		patienthandler.New(patients, log, m, jwtValidator),
		providerhandler.New(providers, log, m, jwtValidator),
		certificatehandler.New(certificates, log, m, jwtValidator),
		verificationhandler.New(verifications, log, m, jwtValidator),
		adminhandler.New(providers, patients, certificates, reg, auditor, cfg.Owner, log, m, jwtValidator),
	)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting certo registry", "addr", cfg.Addr, "authority_mode", string(cfg.AuthorityMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if outboxStore != nil && len(cfg.Kafka.Brokers) > 0 {
		worker, err := audit.NewOutboxWorker(outboxStore, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("audit outbox worker failed to start", "error", err)
			os.Exit(1)
		}
		defer worker.Close()
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
