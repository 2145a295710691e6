package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/sharing"

	sharingCmd "github.com/bobinette/coursedocs/sharing/cmd"
)

var (
	// Service used by the one-shot commands
	service      *sharing.Service
	closeService func()
)

func init() {
	SharingCommand.AddCommand(&SyncCommand)
	SharingCommand.AddCommand(&EventCommand)
	SharingCommand.AddCommand(&ShareCommand)
	SharingCommand.AddCommand(&LinkCommand)
	SharingCommand.AddCommand(&PermissionsCommand)

	inheritPersistentPreRun(&SharingCommand)
	inheritPersistentPreRun(&SyncCommand)
	inheritPersistentPreRun(&EventCommand)
	inheritPersistentPreRun(&ShareCommand)
	inheritPersistentPreRun(&LinkCommand)
	inheritPersistentPreRun(&PermissionsCommand)

	RootCmd.AddCommand(&SharingCommand)
}

var SharingCommand = cobra.Command{
	Use:   "sharing",
	Short: "List all the sharing commands available",
	Long:  "List all the sharing commands available",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		s, closer, err := sharingCmd.NewService(context.Background(), config.Sharing, logger)
		if err != nil {
			logger.Fatal("could not create sharing service:", err)
		}
		service, closeService = s, closer
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeService != nil {
			closeService()
		}
	},
}

var SyncCommand = cobra.Command{
	Use:   "sync [course id]",
	Short: "Recompute the permissions of a course, or of every linked file",
	Long:  "Recompute the permissions of a course, or of every linked file when no course is given",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if len(args) == 0 {
			report, err := service.SyncAll(ctx)
			if err != nil {
				logger.Fatal(err)
			}
			printJSON(cmd, report)
			return
		}

		courseID, err := strconv.Atoi(args[0])
		if err != nil {
			logger.Fatal("invalid course id:", err)
		}
		printJSON(cmd, service.SyncCourse(ctx, courseID))
	},
}
