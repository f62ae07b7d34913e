package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// tokenCmd fetches a streaming token through the signed REST API
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch a websocket token",
	Long:  `Fetch a single-use websocket token from the REST API using the configured credentials.`,
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("api-key", "", "REST api key")
	tokenCmd.Flags().String("secret-key", "", "REST secret key (base64)")
	tokenCmd.Flags().String("base-url", "", "REST base url")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"auth.api_key":    "api-key",
		"auth.secret_key": "secret-key",
		"rest.base_url":   "base-url",
	})
	if err != nil {
		return err
	}

	client, err := newRESTClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(ctx, cancel)

	token, err := client.WebsocketToken(ctx)
	if err != nil {
		return err
	}
	printf(cmd, "%s\n", token)
	return nil
}
