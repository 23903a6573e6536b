package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/metrics"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/notify"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/pdf"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/realtime"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/sqlite"
	httpRouter "github.com/jhoicas/magazzino-sync/internal/interfaces/http"
	"github.com/jhoicas/magazzino-sync/internal/scheduler"
	"github.com/jhoicas/magazzino-sync/pkg/config"
	"github.com/jhoicas/magazzino-sync/pkg/jwt"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

func newClientCommand(opts *rootOptions) *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Puesto local: API HTTP, almacén SQLite y sincronización con la autoridad",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(opts)
			if err != nil {
				return err
			}
			if storePath != "" {
				cfg.Store.Path = storePath
			}
			return runClient(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "ruta del almacén SQLite (por defecto STORE_PATH)")
	return cmd
}

// alertDispatcher log siempre; webhook si está configurado.
func alertDispatcher(cfg *config.Config, log *logger.Logger) appinv.AlertDispatcher {
	fan := notify.Fanout{notify.NewLogDispatcher(log)}
	if cfg.Alerts.WebhookURL != "" {
		fan = append(fan, notify.NewWebhookDispatcher(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout))
	}
	return fan
}

func defaultThresholds(cfg config.AlertsConfig) appinv.Thresholds {
	return appinv.Thresholds{
		Min:     decimal.NewFromFloat(cfg.DefaultMin),
		Optimal: decimal.NewFromFloat(cfg.DefaultOptimal),
	}
}

func runClient(parent context.Context, cfg *config.Config, log *logger.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("env", cfg.App.Env).
		Str("client_id", cfg.App.ClientID).
		Str("store", cfg.Store.Path).
		Msg("iniciando puesto local")

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("abrir almacén: %w", err)
	}
	defer store.Close()

	reg := metrics.New()

	monitor := appinv.NewMonitor(alertDispatcher(cfg, log), cfg.Alerts.QueueSize, log)
	monitor.UseMetrics(reg)
	monitor.Start(ctx)
	defer monitor.Stop()

	svc := appinv.NewService(sqlite.NewTxRunner(store), monitor, defaultThresholds(cfg.Alerts), log)
	svc.UseMetrics(reg)
	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("cargar estado local: %w", err)
	}

	var token string
	if cfg.JWT.Secret != "" {
		token, err = jwt.Generate(cfg.JWT.Secret, cfg.App.ClientID, "client", cfg.JWT.Issuer, cfg.JWT.Expiration)
		if err != nil {
			return fmt.Errorf("token del canal: %w", err)
		}
	}
	channel := realtime.NewClient(cfg.Sync.AuthorityURL, token, log)
	coord := syncengine.NewCoordinator(svc, channel, syncengine.Config{
		AckTimeout:  cfg.Sync.AckTimeout,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffMax:  cfg.Sync.BackoffMax,
	}, log)
	coord.UseMetrics(reg)

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		if err := coord.Run(ctx); err != nil {
			log.Error().Err(err).Msg("sincronización finalizada")
		}
	}()

	sched := scheduler.NewScheduler(scheduler.Config{
		ResyncSpec: cfg.Sync.ResyncSpec,
		ReportSpec: cfg.Alerts.ReportSpec,
	}, coord, svc, log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	httpRouter.Router(app, httpRouter.RouterDeps{
		Inventory:   svc,
		Coordinator: coord,
		Metrics:     reg.Handler(),
		PDF:         pdf.NewMarotoPDFGenerator(cfg.App.ClientID),
		JWTSecret:   cfg.JWT.Secret,
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.HTTP.Addr())
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	case err := <-listenErr:
		if err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	<-syncDone
	_ = channel.Close()

	log.Info().Msg("puesto local detenido")
	return nil
}
