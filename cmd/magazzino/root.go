package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/magazzino-sync/pkg/config"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

// rootOptions flags globales.
type rootOptions struct {
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "magazzino",
		Short:        "Libro de movimientos de almacén con sincronización fuera de línea",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "nivel de log (trace|debug|info|warn|error); por defecto LOG_LEVEL")

	cmd.AddCommand(newClientCommand(opts))
	cmd.AddCommand(newAuthorityCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// bootstrap carga la configuración y crea el logger común a todos los subcomandos.
func bootstrap(opts *rootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.App.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: level})
	return cfg, log, nil
}
