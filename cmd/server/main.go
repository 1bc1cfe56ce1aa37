// Command server runs the ticket coordinator: the HTTP API, the
// websocket hub and the notification dispatcher, sharing one process.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/BladedNarwhal/Nar-Bot/internal/config"
	"github.com/BladedNarwhal/Nar-Bot/internal/database"
	"github.com/BladedNarwhal/Nar-Bot/internal/gateway"
	"github.com/BladedNarwhal/Nar-Bot/internal/handler"
	"github.com/BladedNarwhal/Nar-Bot/internal/queue"
	"github.com/BladedNarwhal/Nar-Bot/internal/realtime"
	"github.com/BladedNarwhal/Nar-Bot/internal/repository"
	"github.com/BladedNarwhal/Nar-Bot/internal/router"
	"github.com/BladedNarwhal/Nar-Bot/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	limits := config.LoadLimits()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancelMigrate()
		log.Fatalf("migrate: %v", err)
	}
	cancelMigrate()

	store, err := repository.NewFileTicketStore(cfg.TicketDir)
	if err != nil {
		log.Fatalf("ticket store: %v", err)
	}

	viewers := repository.NewViewerRepo(db)
	ratings := repository.NewRatingRepo(db)
	points := repository.NewPointsRepo(db)
	users := repository.NewUserRepo(db)
	bans := repository.NewBanRepo(db)
	admins := repository.NewAdminRepo(db)

	gw := gateway.New(cfg.GatewayURL, cfg.GatewayToken)
	rdb := config.NewRedisClient() // nil when redis is unavailable
	roles := service.NewRoleChecker(gw, admins, cfg.AdminRoleID, config.LoadRoleCacheConfig(), rdb)

	hub := realtime.NewHub()
	publisher := queue.NewPublisher(cfg.AMQPURL)
	messages := service.NewCooldownLimiter(limits.MessageCooldown, nil)
	tickets := service.NewTicketService(store, viewers, ratings, points, publisher, hub, messages, limits, nil)
	hub.SetReadReceiptHandler(tickets)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := queue.NewDispatcher(cfg.AMQPURL, gw, admins, cfg.PanelURL)
	go func() {
		if err := dispatcher.Start(ctx); err != nil {
			log.Printf("dispatcher stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Tickets:   handler.NewTicketHandler(tickets),
		Users:     handler.NewUserHandler(users, bans, points, ratings, store, publisher, hub, limits),
		WS:        handler.NewWSHandler(hub, cfg.JWTSecret),
		JWTSecret: cfg.JWTSecret,
		Roles:     roles,
		Bans:      bans,
		Touch:     users,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
