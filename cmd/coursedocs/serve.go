package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/gin"

	sharingCmd "github.com/bobinette/coursedocs/sharing/cmd"
)

func init() {
	inheritPersistentPreRun(&ServeCommand)
	RootCmd.AddCommand(&ServeCommand)
}

var ServeCommand = cobra.Command{
	Use:   "serve",
	Short: "Start the http server, the event consumer and the nightly resync",
	Long:  "Start the http server, the event consumer and the nightly resync",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := gin.New(config.Addr, env, logger)
		sharingCmd.Start(ctx, srv, config.Sharing, logger)

		errc := make(chan error, 1)
		go func() { errc <- srv.Start() }()
		logger.Printf("server started, listening on %s", config.Addr)

		select {
		case err := <-errc:
			logger.Fatal("server stopped:", err)
		case <-ctx.Done():
			logger.Print("shutting down")
		}
	},
}
