package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	serverAuth "github.com/MrEthical07/serverAuth"
	"github.com/spf13/cobra"
)

var claims []string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign or verify session tokens with the configured secret",
}

var tokenSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a session token from key=value claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := offlineAuth()
		if err != nil {
			return err
		}
		defer auth.Close()

		payload, err := parseClaims(claims)
		if err != nil {
			return err
		}

		signed, err := auth.Sign(payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed.Value)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", signed.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a session token and print its payload as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth, err := offlineAuth()
		if err != nil {
			return err
		}
		defer auth.Close()

		payload, err := auth.Verify(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	},
}

func init() {
	tokenSignCmd.Flags().StringArrayVar(&claims, "claim", nil, "claim as key=value (repeatable)")
	tokenCmd.AddCommand(tokenSignCmd, tokenVerifyCmd)
	rootCmd.AddCommand(tokenCmd)
}

func offlineAuth() (*serverAuth.ServerAuth, error) {
	fc, err := loadFileConfig(configPath)
	if err != nil {
		return nil, err
	}
	fc.Audit.Enabled = false

	cfg, err := fc.serverAuthConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(fc)
	if err != nil {
		return nil, err
	}
	return serverAuth.New().WithConfig(cfg).WithLogger(logger).Build()
}

func parseClaims(pairs []string) (serverAuth.Payload, error) {
	payload := make(serverAuth.Payload, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("claim %q is not key=value", pair)
		}
		payload[key] = value
	}
	return payload, nil
}
