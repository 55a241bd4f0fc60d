package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/movieon/reservation-core/internal/booking"
	"github.com/movieon/reservation-core/internal/config"
	"github.com/movieon/reservation-core/internal/database"
	"github.com/movieon/reservation-core/internal/gateway"
	"github.com/movieon/reservation-core/internal/handler"
	"github.com/movieon/reservation-core/internal/queue"
	"github.com/movieon/reservation-core/internal/repository"
	"github.com/movieon/reservation-core/internal/router"
	queue_publisher "github.com/movieon/reservation-core/internal/service"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	store := repository.NewStore(db)
	screenings := repository.NewScreeningRepo(store)
	seats := repository.NewSeatRepo(store)
	slots := repository.NewScreeningSeatRepo(store)
	reservations := repository.NewReservationRepo(store)
	payments := repository.NewPaymentRepo(store)

	publisher := queue_publisher.NewPublisher(cfg.AMQPURL, log)
	clock := booking.SystemClock()

	var (
		gw       booking.Gateway
		verifier handler.SignatureVerifier
	)
	switch cfg.PaymentGateway {
	case "razorpay":
		rzp := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret, log)
		gw, verifier = rzp, rzp
	default:
		stub := gateway.NewStub(log)
		gw, verifier = stub, stub
		log.Warn("using stub payment gateway; settlement must be driven by hand")
	}

	ledger := booking.NewLedger(store, slots, reservations, payments, publisher, clock, log)
	holds := booking.NewHoldManager(store, screenings, slots, reservations, clock, cfg.HoldTTL)
	coordinator := booking.NewCoordinator(store, reservations, payments, gw, ledger, clock, cfg.PaymentCurrency, log)
	sweeper := booking.NewSweeper(reservations, slots, ledger, clock, cfg.SweepInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	go func() {
		if err := queue.StartConsumer(cfg.AMQPURL, log); err != nil {
			log.WithError(err).Error("reservation consumer stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and response cache disabled")
	}
	router.Register(e,
		handler.NewCustomerHandler(holds, coordinator, ledger, reservations, log),
		handler.NewPaymentHandler(coordinator, verifier, log),
		handler.NewOwnerHandler(store, screenings, seats, slots, log),
		handler.NewPublicHandler(screenings, slots),
		cfg.JWTSecret, rdb)

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}
