package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/magazzino-sync/pkg/jwt"
)

func newTokenCommand(root *rootOptions) *cobra.Command {
	var clientID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un JWT para la API local o el canal (usa JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "client" && role != "admin" {
				return fmt.Errorf("rol %q inválido: client | admin", role)
			}
			cfg, _, err := bootstrap(root)
			if err != nil {
				return err
			}
			if clientID == "" {
				clientID = cfg.App.ClientID
			}
			token, err := jwt.Generate(cfg.JWT.Secret, clientID, role, cfg.JWT.Issuer, cfg.JWT.Expiration)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "identidad del cliente (por defecto APP_CLIENT_ID)")
	cmd.Flags().StringVar(&role, "role", "client", "rol: client | admin")
	return cmd
}
