package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/notify"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/sqlite"
)

type replayOptions struct {
	*rootOptions
	Store  string
	Format string // text | json
}

// replayResult salida en JSON del comando replay.
type replayResult struct {
	Positions      []dto.StockPositionResponse      `json:"positions"`
	Replenishments []dto.ReplenishmentSuggestionDTO `json:"replenishments"`
	Sync           appinv.SyncReport                `json:"sync"`
}

func newReplayCommand(root *rootOptions) *cobra.Command {
	opts := &replayOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reproyecta el libro local y muestra giacenze y alertas de nivel",
		Long: `Abre el almacén local, reconstruye las posiciones a partir del libro de movimientos
y lista los productos bajo mínimo. No abre el canal con la autoridad.

Ejemplos:
  magazzino replay --store ./magazzino.db
  magazzino replay --store ./magazzino.db --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("formato %q inválido: text | json", opts.Format)
			}
			cfg, log, err := bootstrap(opts.rootOptions)
			if err != nil {
				return err
			}
			if opts.Store == "" {
				opts.Store = cfg.Store.Path
			}

			store, err := sqlite.Open(opts.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			monitor := appinv.NewMonitor(notify.NewLogDispatcher(log), cfg.Alerts.QueueSize, log)
			monitor.Start(ctx)
			defer monitor.Stop()

			svc := appinv.NewService(sqlite.NewTxRunner(store), monitor, defaultThresholds(cfg.Alerts), log)
			if err := svc.Load(ctx); err != nil {
				return err
			}
			return writeReplay(cmd.OutOrStdout(), opts.Format, svc)
		},
	}
	cmd.Flags().StringVar(&opts.Store, "store", "", "ruta del almacén SQLite (por defecto STORE_PATH)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "formato de salida (text|json)")
	return cmd
}

func writeReplay(w io.Writer, format string, svc *appinv.Service) error {
	res := replayResult{
		Replenishments: svc.GenerateReplenishmentList(),
		Sync:           svc.SyncReport(),
	}
	for _, p := range svc.Positions() {
		res.Positions = append(res.Positions, appinv.ToPositionResponse(p))
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCTO\tCANTIDAD\tUNIDAD\tCOSTO MEDIO\tMÍNIMO\tÓPTIMO")
	for _, p := range res.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ProductName, p.QuantityOnHand, p.Unit, p.WeightedAverageCost, p.MinThreshold, p.OptimalThreshold)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nbajo mínimo: %d\n", len(res.Replenishments))
	for _, r := range res.Replenishments {
		fmt.Fprintf(w, "  %d. %s [%s] pedir %s %s\n", r.Priority, r.ProductName, r.Severity, r.SuggestedOrderQty, r.Unit)
	}
	fmt.Fprintf(w, "\nmovimientos: %d (pendientes %d, enviados %d, sincronizados %d, fallidos %d)\n",
		res.Sync.Total, res.Sync.Pending, res.Sync.Sent, res.Sync.Synced, res.Sync.Failed)
	return nil
}
