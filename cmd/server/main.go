// Command server runs the trust & safety API: ban lifecycle, moderation
// actions, appeals, and the retention sweeper. Wiring lives here; business
// rules live in the internal service packages.
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

	"warden/internal/appeal"
	"warden/internal/archive"
	"warden/internal/audit"
	"warden/internal/ban"
	"warden/internal/identity"
	jwttoken "warden/internal/jwt_token"
	"warden/internal/moderation"
	"warden/internal/notify"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/kafka"
	"warden/internal/platform/logger"
	"warden/internal/platform/metrics"
	platformredis "warden/internal/platform/redis"
	"warden/internal/profile"
	"warden/internal/ratelimit"
	"warden/internal/retention"
	httptransport "warden/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var pool *pgxpool.Pool
	if cfg.PostgresURL != "" {
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var profiles profile.Store
	var schedule ban.ScheduleStore
	var limitStore ratelimit.Store
	if rdb != nil {
		profiles = profile.NewRedisStore(rdb.Client)
		schedule = ban.NewRedisScheduleStore(rdb.Client)
		limitStore = ratelimit.NewRedisStore(rdb)
	} else {
		log.Warn("redis not configured, using in-memory stores")
		profiles = profile.NewInMemoryStore()
		schedule = ban.NewInMemoryScheduleStore()
		limitStore = ratelimit.NewInMemoryStore()
	}

	var auditStore audit.Store
	var violations moderation.ViolationStore
	var contents moderation.ContentStore
	var reports moderation.ReportStore
	var appealStore appeal.Store
	var sources []retention.Source
	if pool != nil {
		auditPG := audit.NewPostgresStore(pool)
		violationPG := moderation.NewPostgresViolationStore(pool)
		contentPG := moderation.NewPostgresContentStore(pool)
		reportPG := moderation.NewPostgresReportStore(pool)
		appealPG := appeal.NewPostgresStore(pool)
		for _, migrate := range []func(context.Context) error{
			auditPG.Migrate, violationPG.Migrate, contentPG.Migrate, reportPG.Migrate, appealPG.Migrate,
		} {
			if err := migrate(ctx); err != nil {
				return err
			}
		}
		auditStore, violations, contents, reports, appealStore = auditPG, violationPG, contentPG, reportPG, appealPG
		sources = []retention.Source{auditPG, contentPG, appealPG}
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		auditMem := audit.NewInMemoryStore()
		contentMem := moderation.NewInMemoryContentStore()
		appealMem := appeal.NewInMemoryStore()
		auditStore, contents, appealStore = auditMem, contentMem, appealMem
		violations = moderation.NewInMemoryViolationStore()
		reports = moderation.NewInMemoryReportStore()
		sources = []retention.Source{auditMem, contentMem, appealMem}
	}

	var idp identity.Provider
	if cfg.IdentityURL != "" {
		idp = identity.NewHTTPProvider(cfg.IdentityURL, cfg.IdentityToken)
	} else {
		log.Warn("identity provider not configured, using in-memory provider")
		idp = identity.NewInMemoryProvider()
	}

	notifier := notify.NewLogNotifier(log)
	auditor := audit.NewPublisher(auditStore, log, cfg.AuditRetention)

	bans, err := ban.New(profiles, idp, schedule, auditor, log,
		ban.WithMetrics(m),
		ban.WithNotifier(notifier),
	)
	if err != nil {
		return err
	}
	mod, err := moderation.New(violations, contents, reports, profiles, bans, auditor, log,
		moderation.WithMetrics(m),
		moderation.WithNotifier(notifier),
		moderation.WithGracePeriod(cfg.ContentGracePeriod),
	)
	if err != nil {
		return err
	}
	appeals, err := appeal.New(appealStore, bans, contents, reports, violations, auditor, log,
		appeal.WithMetrics(m),
		appeal.WithNotifier(notifier),
		appeal.WithRetention(cfg.AppealRetention),
	)
	if err != nil {
		return err
	}

	blobs, err := archive.NewFilesystemStore(cfg.ArchiveDir)
	if err != nil {
		return err
	}
	archiver := archive.NewReportArchiver(reports, blobs, auditor, log)

	limiter := ratelimit.NewLimiter(limitStore, cfg.AdminActionsPerHour, time.Hour)

	jwtSvc := jwttoken.NewJWTService(cfg.AdminJWTKey, "warden")

	var health []httptransport.HealthCheck
	if rdb != nil {
		health = append(health, httptransport.HealthCheck{Name: "redis", Check: rdb.Health})
	}
	if pool != nil {
		health = append(health, httptransport.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	handler := httptransport.NewHandler(bans, mod, appeals, archiver, limiter, log, health)
	router := httptransport.NewRouter(handler, jwttoken.NewValidator(jwtSvc), log)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The sweeper only runs when the deletion stream is available: deleting
	// without a durable deletion event would break the archive guarantee.
	if len(cfg.KafkaBrokers) > 0 {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, cfg.DeletionTopic); err != nil {
			return err
		}
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer producer.Close()

		publisher := retention.NewStreamPublisher(cfg.DeletionTopic, producer.Produce)
		sweeper := retention.NewSweeper(publisher, log, cfg.SweepInterval, sources,
			retention.WithMetrics(m),
		)
		group.Go(func() error {
			err := sweeper.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Warn("kafka not configured, retention sweeper disabled")
	}

	return group.Wait()
}
