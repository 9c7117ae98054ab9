package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"audiotube/internal/logging"
	"audiotube/internal/youtube"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize external accounts",
	}
	authCmd.AddCommand(newAuthYouTubeCommand(ctx))
	return authCmd
}

func newAuthYouTubeCommand(ctx *commandContext) *cobra.Command {
	var listen string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "youtube",
		Short: "Authorize the YouTube channel uploads go to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			clientCfg, err := youtube.LoadClientConfig(cfg.YouTube.ClientSecrets)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			out := cmd.OutOrStdout()
			store := youtube.NewFileTokenStore(cfg.YouTube.TokenFile)
			token, err := youtube.Authorize(cmd.Context(), clientCfg, store, youtube.AuthorizeOptions{
				Prompt: func(url string) {
					fmt.Fprintln(out, "Open this URL in a browser and grant access:")
					fmt.Fprintln(out, url)
				},
				ListenAddr: listen,
				Timeout:    timeout,
			}, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Token stored at %s\n", store.Path())
			if token.RefreshToken == "" {
				fmt.Fprintln(out, "warning: no refresh token was issued; revoke the app's access and authorize again")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:0", "Loopback address for the OAuth redirect")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}
