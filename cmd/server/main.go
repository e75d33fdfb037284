package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/fairdraw/internal/config"
	"github.com/iliyamo/fairdraw/internal/database"
	"github.com/iliyamo/fairdraw/internal/handler"
	"github.com/iliyamo/fairdraw/internal/lottery"
	"github.com/iliyamo/fairdraw/internal/middleware"
	"github.com/iliyamo/fairdraw/internal/queue"
	"github.com/iliyamo/fairdraw/internal/repository"
	"github.com/iliyamo/fairdraw/internal/router"
	"github.com/iliyamo/fairdraw/internal/service"
)

const shutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	if cfg.Env != "dev" {
		e.Logger.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`)
	}
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		e.Logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancel()
		e.Logger.Fatalf("migrate: %v", err)
	}
	cancel()

	// Redis backs the rate limiter, the response cache and the live event
	// feed.  Without it those degrade to pass-through.
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		e.Logger.Fatalf("redis config: %v", err)
	}
	rdb, err := config.NewRedisClient(redisCfg)
	if err != nil {
		e.Logger.Warnf("redis unavailable, running without cache, rate limit and live updates: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}
	limitCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		e.Logger.Fatalf("rate limit config: %v", err)
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		e.Logger.Fatalf("cache config: %v", err)
	}
	limit := middleware.NewTokenBucket(limitCfg, rdb)
	eventLimit := middleware.NewTokenBucket(limitCfg.ForEvents(), rdb)
	cache := middleware.NewRedisCache(cacheCfg, rdb)

	// Repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	inboxes := repository.NewInboxRepo(db)
	deliveries := repository.NewNotificationLogRepo(db)
	feed := repository.NewEventFeed(rdb, cfg.Notify.FeedPrefix)

	// Notification transport: write inboxes directly, or hand them to
	// RabbitMQ and let the consumer write them (and the audit row).
	var (
		sink     service.Inbox       = inboxes
		audit    service.DeliveryLog = deliveries
		consumer *queue.Consumer
	)
	if cfg.Notify.Transport == config.TransportAMQP {
		pub := queue.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Queue, e.Logger)
		defer pub.Close()
		sink, audit = pub, nil
		consumer = queue.NewConsumer(cfg.Notify.AMQPURL, cfg.Notify.Queue, inboxes, deliveries, e.Logger)
	}
	dispatcher := service.NewDispatcher(sink, audit, e.Logger)

	svc := service.NewLotteryService(events, dispatcher, users, feed,
		lottery.Locked(lottery.NewRNG(cfg.Lottery.RNGSeed)), e.Logger,
		service.Options{
			CASAttempts:      cfg.Lottery.CASAttempts,
			NotifyLosers:     cfg.Notify.NotifyLosers,
			NotifyWaitlisted: cfg.Notify.NotifyWaitlisted,
			GeoResolution:    cfg.Lottery.GeoResolution,
		})

	var live handler.EventSubscriber
	if rdb != nil {
		live = feed
	}

	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret, limit)
	router.RegisterEvents(e, handler.NewEventHandler(svc, live), cfg.JWTSecret, limit, eventLimit, cache)
	router.RegisterNotifications(e, handler.NewNotificationHandler(inboxes, deliveries), cfg.JWTSecret, limit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.Port
	g.Go(func() error {
		e.Logger.Infof("listening on %s (env=%s, notify=%s)", addr, cfg.Env, cfg.Notify.Transport)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		e.Logger.Fatal(err)
	}
	e.Logger.Info("shut down cleanly")
}
