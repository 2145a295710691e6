package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/jwt"
)

var (
	tokenUserID  int
	tokenService string
	tokenTTL     time.Duration
)

func init() {
	TokenCommand.Flags().IntVar(&tokenUserID, "user", 0, "LMS user id")
	TokenCommand.Flags().StringVar(&tokenService, "service", "", "name of the calling service, e.g. moodle")
	TokenCommand.Flags().DurationVar(&tokenTTL, "ttl", 0, "validity of the token, 0 for no expiration")

	inheritPersistentPreRun(&TokenCommand)
	RootCmd.AddCommand(&TokenCommand)
}

var TokenCommand = cobra.Command{
	Use:   "token",
	Short: "Create a bearer token for the sharing endpoints",
	Long:  "Create a bearer token for the sharing endpoints",
	Run: func(cmd *cobra.Command, args []string) {
		if tokenUserID == 0 && tokenService == "" {
			logger.Fatal("token wants a --user or a --service")
		}

		key, err := jwt.ReadKey(config.Sharing.KeyPath)
		if err != nil {
			logger.Fatal(err)
		}

		token, err := jwt.NewEncoder(key, tokenTTL).Encode(jwt.Claims{
			UserID:  tokenUserID,
			Service: tokenService,
		})
		if err != nil {
			logger.Fatal("could not encode token:", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
	},
}
