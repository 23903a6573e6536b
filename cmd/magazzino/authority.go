package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appauth "github.com/jhoicas/magazzino-sync/internal/application/authority"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/metrics"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/realtime"
	"github.com/jhoicas/magazzino-sync/internal/interfaces/authority"
	"github.com/jhoicas/magazzino-sync/pkg/config"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

func newAuthorityCommand(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Servidor autoritativo: libro en PostgreSQL y canal en tiempo real",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(opts)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Sync.ListenAddr = listen
			}
			return runAuthority(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "dirección de escucha (por defecto SYNC_LISTEN_ADDR)")
	return cmd
}

func runAuthority(parent context.Context, cfg *config.Config, log *logger.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("env", cfg.App.Env).Str("listen", cfg.Sync.ListenAddr).Msg("iniciando servidor autoritativo")

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	svc := appauth.NewService(postgres.NewAuthorityRepository(pool), log)
	hub := realtime.NewHub(nil, log)
	reg := metrics.New()
	reg.ObservePeers(hub.Len)

	router := authority.NewRouter(authority.Deps{
		Service:   svc,
		Hub:       hub,
		JWTSecret: cfg.JWT.Secret,
		Metrics:   reg.Handler(),
		Counters:  reg,
		Log:       log,
	})
	if cfg.JWT.Secret == "" {
		log.Warn().Msg("JWT_SECRET vacío: el canal acepta clientes sin autenticar")
	}

	srv := &http.Server{
		Addr:              cfg.Sync.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	case err := <-listenErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("servidor autoritativo: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	hub.Shutdown()

	log.Info().Msg("servidor autoritativo detenido")
	return nil
}
