// Command joingroups-server runs the JoinGroups directory API.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/joingroups-backend/internal/auth"
	"github.com/tbourn/joingroups-backend/internal/backfill"
	"github.com/tbourn/joingroups-backend/internal/captcha"
	"github.com/tbourn/joingroups-backend/internal/config"
	httpapi "github.com/tbourn/joingroups-backend/internal/http"
	"github.com/tbourn/joingroups-backend/internal/notify"
	"github.com/tbourn/joingroups-backend/internal/observability"
	"github.com/tbourn/joingroups-backend/internal/repo"
	"github.com/tbourn/joingroups-backend/internal/services"
	"github.com/tbourn/joingroups-backend/internal/sysutil"
	"github.com/tbourn/joingroups-backend/internal/translate"
	"github.com/tbourn/joingroups-backend/internal/views"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 15 * time.Second
	idemPurgeEvery  = time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logCloser, err := sysutil.SetupLogger(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		File:    cfg.LogFile,
		Service: cfg.OTEL.ServiceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("logger setup")
	}
	defer logCloser.Close()

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	rdb := openRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	notifier, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.AlertChatID)
	if err != nil {
		return err
	}

	deps := httpapi.Deps{
		DB:       db,
		Views:    views.NewRedis(rdb, cfg.ViewDedupTTL),
		Notifier: notifier,
		Auth:     auth.NewManager(cfg.Admin.Email, cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.JWTTTL),
	}
	if cfg.Captcha.Enabled && rdb != nil {
		deps.Captcha = captcha.NewManager(rdb, captcha.Options{
			TTL:             cfg.Captcha.TTL,
			RateLimitPerMin: cfg.Captcha.RatePerMin,
		})
	}

	var trOpts []translate.Option
	if cfg.Translate.LowerCaseCodes {
		trOpts = append(trOpts, translate.WithLowerCaseCodes())
	}
	tr := translate.NewClient(cfg.Translate.URL, cfg.Translate.Timeout, trOpts...)

	queue, err := backfill.OpenQueue(cfg.Backfill.QueuePath)
	if err != nil {
		return err
	}
	defer queue.Close()

	var worker *backfill.Worker
	if tr.Enabled() {
		deps.Suggest = translate.NewDebouncer(tr, cfg.Translate.Debounce)
		worker = backfill.NewWorker(queue, tr, services.DescriptionPatcher{DB: db}, backfill.Options{
			Interval:    cfg.Backfill.Interval,
			MaxAttempts: cfg.Backfill.MaxAttempts,
			MaxFailures: cfg.Backfill.MaxFailures,
		})
		if _, err := worker.Start(ctx); err != nil {
			return err
		}
		deps.Backfill = worker
	} else {
		log.Warn().Msg("TRANSLATE_URL not set: translation suggestions and back-fill disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		queue.RunGC(gctx, cfg.Backfill.GCInterval)
		return nil
	})
	g.Go(func() error {
		purgeIdempotency(gctx, db, idemPurgeEvery)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if worker != nil {
			if werr := worker.Shutdown(sctx); werr != nil {
				log.Warn().Err(werr).Int("running", worker.Running()).Msg("back-fill jobs still running at shutdown")
			}
		}
		return err
	})
	return g.Wait()
}

// openRedis returns nil when no address is configured. An unreachable server
// is logged, not fatal: captcha answers 503 and views count every hit.
func openRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	if rc.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", rc.Addr).Msg("redis unreachable at startup")
	}
	return rdb
}

func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
			}
		}
	}
}
