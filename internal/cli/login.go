package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yeboster/trade-republic-tracker/internal/auth"
	"github.com/Yeboster/trade-republic-tracker/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate and cache session tokens",
	Long: `Performs the phone + PIN login and the SMS code exchange, then caches
the resulting session tokens so later commands can skip the code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		creds := auth.Credentials{
			PhoneNumber: os.Getenv(config.EnvPhone),
			PIN:         os.Getenv(config.EnvPIN),
		}
		if creds.PhoneNumber == "" {
			creds.PhoneNumber, err = prompt("Phone number (+49...): ")
			if err != nil {
				return err
			}
		}
		if creds.PIN == "" {
			creds.PIN, err = prompt("PIN: ")
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		client := auth.NewClient(cfg.API.RESTBaseURL, log)
		challenge, err := client.Login(ctx, creds)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		code := os.Getenv(config.EnvOTP)
		if code == "" {
			code, err = prompt("SMS code: ")
			if err != nil {
				return err
			}
		}

		session, err := client.Verify(ctx, challenge, code)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		if err := auth.SaveSession(cfg.TokenPath, session); err != nil {
			return fmt.Errorf("login: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Tokens cached at %s\n", cfg.TokenPath)
		return nil
	},
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
