package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/sharing"
)

var shareRole string

func init() {
	ShareCommand.Flags().StringVar(&shareRole, "role", "", "role to grant: reader or writer")
}

var ShareCommand = cobra.Command{
	Use:   "share <insert|update|patch|delete> <file id> <user id>",
	Short: "Change the permission of one user on one file",
	Long:  "Change the permission of one user on one file",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		userID, err := strconv.Atoi(args[2])
		if err != nil {
			logger.Fatal("invalid user id:", err)
		}

		res, err := service.Share(context.Background(), sharing.ShareRequest{
			Action: sharing.ShareAction(args[0]),
			FileID: args[1],
			UserID: userID,
			Role:   sharing.Role(shareRole),
		})
		if err != nil {
			logger.Fatal(err)
		}
		printJSON(cmd, res)
	},
}

var LinkCommand = cobra.Command{
	Use:   "link <module id>",
	Short: "Show the file linked to a module",
	Long:  "Show the file linked to a module",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		moduleID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("invalid module id:", err)
		}

		link, err := service.Link(context.Background(), moduleID)
		if err != nil {
			logger.Fatal(err)
		}
		printJSON(cmd, link)
	},
}

var PermissionsCommand = cobra.Command{
	Use:   "permissions <file id>",
	Short: "List the Drive permissions of a file",
	Long:  "List the Drive permissions of a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		perms, err := service.Permissions(context.Background(), args[0])
		if err != nil {
			logger.Fatal(err)
		}
		printJSON(cmd, perms)
	},
}
