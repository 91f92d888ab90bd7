package main

import (
	"fmt"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}
	cmd.AddCommand(authSheetsCmd())
	return cmd
}

func authSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Authorize publishing forecasts to Google Sheets",
		Long: `Run the Google OAuth2 consent flow and store the token.

Requires sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID
and GOOGLE_SHEETS_CLIENT_SECRET). The token is written to sheets.token_file,
by default ~/.config/ledger/sheets-token.json.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("callback")

			cfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				// The token does not exist yet, so only the client credentials matter here.
				cfg = &sheets.Config{
					ClientID:     viper.GetString("sheets.client_id"),
					ClientSecret: viper.GetString("sheets.client_secret"),
					TokenFile:    config.ExpandPath(viper.GetString("sheets.token_file")),
				}
			}
			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return common.NewUserError("sheets.client_id and sheets.client_secret must be configured", common.ErrMissingConfig)
			}
			if cfg.TokenFile == "" {
				cfg.TokenFile = config.ExpandPath("~/.config/" + config.AppName + "/sheets-token.json")
			}

			out := cmd.OutOrStdout()
			ctx, cancel := cli.NewInterruptHandler(cmd.ErrOrStderr()).HandleInterrupts(cmd.Context(), "Authorization")
			defer cancel()

			_, err = sheets.AuthenticateOAuth2Interactive(ctx, sheets.OAuth2Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenFile:    cfg.TokenFile,
				CallbackAddr: addr,
			}, func(url string) {
				fmt.Fprintln(out, cli.FormatPrompt("Open this URL in your browser to authorize access:"))
				fmt.Fprintln(out, url)
			})
			if err != nil {
				return fmt.Errorf("google sheets authorization failed: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Authorized; token saved to "+cfg.TokenFile))
			return nil
		},
	}
	cmd.Flags().String("callback", sheets.DefaultCallbackAddr, "Address the local callback server listens on")
	return cmd
}
