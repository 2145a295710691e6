package main

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bobinette/coursedocs/sharing"
	"github.com/bobinette/coursedocs/sharing/redis"
)

var (
	event   sharing.Event
	enqueue bool
)

func init() {
	EventCommand.Flags().IntVar(&event.CategoryID, "category", 0, "category id")
	EventCommand.Flags().IntVar(&event.CourseID, "course", 0, "course id")
	EventCommand.Flags().IntVar(&event.SectionID, "section", 0, "section id")
	EventCommand.Flags().IntVar(&event.ModuleID, "module", 0, "course module id")
	EventCommand.Flags().StringVar(&event.ModuleType, "type", "", "module type")
	EventCommand.Flags().BoolVar(&enqueue, "enqueue", false, "push the event to the redis queue instead of handling it")
}

var EventCommand = cobra.Command{
	Use:   "event <kind>",
	Short: "Handle an LMS event",
	Long:  "Handle an LMS event, or push it to the queue the server consumes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		event.Kind = sharing.EventKind(args[0])

		e, err := event.Normalize()
		if err != nil {
			logger.Fatal(err)
		}

		if !enqueue {
			printJSON(cmd, service.OnEvent(ctx, e))
			return
		}

		conf := config.Sharing.Redis
		if conf.Addr == "" {
			logger.Fatal("no redis configured")
		}
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     conf.Addr,
			Password: conf.Password,
			DB:       conf.DB,
		})
		defer rdb.Close()

		if err := redis.NewConsumer(rdb, conf.Key, service, logger).Publish(ctx, e); err != nil {
			logger.Fatal(err)
		}
		logger.Printf("event %s queued", e.Kind)
	},
}
