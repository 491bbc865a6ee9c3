package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumit010804/food-share-sub000/internal/analytics"
	"github.com/sumit010804/food-share-sub000/internal/config"
	"github.com/sumit010804/food-share-sub000/internal/database"
	"github.com/sumit010804/food-share-sub000/internal/handler"
	"github.com/sumit010804/food-share-sub000/internal/middleware"
	"github.com/sumit010804/food-share-sub000/internal/outbox"
	"github.com/sumit010804/food-share-sub000/internal/queue"
	"github.com/sumit010804/food-share-sub000/internal/repository"
	"github.com/sumit010804/food-share-sub000/internal/router"
	"github.com/sumit010804/food-share-sub000/internal/service"
	"github.com/sumit010804/food-share-sub000/internal/ticket"
)

func main() {
	cfg := config.Load() // Load environment config
	log := newLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis is optional; the reservation flow works without it.
	var agg *analytics.Aggregate
	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable; analytics, caching and rate limiting disabled", "err", err)
	} else {
		defer rdb.Close()
		agg = analytics.New(rdb)
	}

	listings := repository.NewListingRepo(db)
	collections := repository.NewCollectionRepo(db)
	tickets := repository.NewTicketRepo(db)
	donations := repository.NewDonationRepo(db)
	events := repository.NewOutboxRepo(db)
	feed := repository.NewNotificationRepo(db)

	var applier service.Applier
	if agg != nil {
		applier = agg
	}
	notifier := service.NewNotifier(events, log)
	settlement := service.NewSettlementService(listings, collections, donations, events, applier, notifier, log)
	reservations := service.NewReservationService(listings, collections, notifier, log)
	ticketSvc := service.NewTicketService(listings, collections, tickets, ticket.NewCodec(cfg.QRSecret), settlement, cfg.TicketValidity, log)

	relay := outbox.NewRelay(events, cfg.Outbox, log)
	consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, feed, log)
	if cfg.AMQP.Enabled {
		relay.Handle(outbox.TopicNotification, queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, log).Deliver)
	} else {
		relay.Handle(outbox.TopicNotification, consumer.Handle)
	}
	if agg != nil {
		relay.Handle(outbox.TopicAnalytics, agg.Deliver)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = relay.Run(ctx)
	}()
	if cfg.AMQP.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = consumer.Run(ctx)
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	router.RegisterAPI(e, router.Handlers{
		Listings:     handler.NewListingHandler(listings, log),
		Reservations: handler.NewReservationHandler(reservations, settlement, log),
		Tickets:      handler.NewTicketHandler(ticketSvc, log),
		Feed:         handler.NewFeedHandler(agg, feed, log),
	}, router.Guards{
		Identity: middleware.BearerIdentity(cfg.JWTSecret),
		Limit:    middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Cache:    middleware.NewRedisCache(cfg.Cache, rdb),
	})

	addr := ":" + cfg.Port
	log.Info("listening", "addr", addr, "env", cfg.Env)
	errc := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
