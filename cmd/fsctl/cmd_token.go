package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sorenbs/ai-chatbot-full/internal/auth"
)

var (
	argSecret string
	argUserID string
	argUser   string
	argTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "mint a development session token signed with the server's secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := auth.New(argSecret)
		if err != nil {
			return fmt.Errorf("%w: use --secret or JWT_SECRET", err)
		}
		userID := argUserID
		if userID == "" {
			userID = uuid.NewString()
		}
		token, err := a.IssueToken(userID, argUser, argTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&argSecret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	tokenCmd.Flags().StringVar(&argUserID, "user-id", "", "user id (random when empty)")
	tokenCmd.Flags().StringVar(&argUser, "username", "dev", "username claim")
	tokenCmd.Flags().DurationVar(&argTTL, "ttl", 24*time.Hour, "token lifetime")
}
