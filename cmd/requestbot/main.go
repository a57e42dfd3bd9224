// Command requestbot runs the Discord request tracker: the gateway
// session handling slash commands and message components, the background
// expiration and schedule sweeps, and the admin HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-request-bot/internal/bot"
	"github.com/tbourn/go-request-bot/internal/config"
	"github.com/tbourn/go-request-bot/internal/gateway"
	httpapi "github.com/tbourn/go-request-bot/internal/http"
	"github.com/tbourn/go-request-bot/internal/repo"
	"github.com/tbourn/go-request-bot/internal/services"
	"github.com/tbourn/go-request-bot/internal/sweep"
	"github.com/tbourn/go-request-bot/internal/sysutil"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatal().Err(err).Msg("build discord session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	gw := gateway.NewDiscord(session)
	lifecycle := services.NewLifecycleService(db, gw)
	requests := services.NewRequestService(db, gw, lifecycle)
	deliveries := services.NewDeliveryService(db)
	schedules := services.NewScheduleService(db, gw)

	b := &bot.Bot{
		Session:    session,
		Requests:   requests,
		Deliveries: deliveries,
		Schedules:  schedules,
		Log:        log.With().Str("component", "bot").Logger(),
	}
	b.Attach()

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("open discord gateway")
	}
	defer session.Close()

	if err := b.RegisterCommands(cfg.DiscordAppID); err != nil {
		log.Fatal().Err(err).Msg("register commands")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter *rate.Limiter
	if cfg.SendRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst)
	}
	sweeper := &sweep.Sweeper{
		DB:        db,
		Gateway:   gw,
		Lifecycle: lifecycle,
		Interval:  cfg.SweepInterval,
		Limiter:   limiter,
		Log:       log.With().Str("component", "sweep").Logger(),
	}
	if cfg.SchedulesEnabled {
		sweeper.Schedules = schedules
	}
	go sweeper.Run(ctx)

	gin.SetMode(cfg.GinMode)
	admin := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.NewRouter(db),
	}
	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server")
		}
	}()

	log.Info().
		Str("db", cfg.DBPath).
		Dur("sweep_interval", cfg.SweepInterval).
		Str("admin_port", cfg.Port).
		Msg("requestbot running")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = admin.Shutdown(shutdownCtx)
	log.Info().Msg("shutting down")
}
