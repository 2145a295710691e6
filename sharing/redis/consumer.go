package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/log"
	"github.com/bobinette/coursedocs/sharing"
)

// DefaultKey is the list the LMS pushes its events to.
const DefaultKey = "coursedocs:events"

type EventHandler interface {
	OnEvent(ctx context.Context, e sharing.Event) sharing.EventReport
}

// Consumer pops events from a redis list and hands them to the service one
// at a time.
type Consumer struct {
	client  *redis.Client
	key     string
	handler EventHandler
	logger  log.Logger

	// wait is how long a BLPOP blocks before the loop checks the context.
	wait time.Duration
}

func NewConsumer(client *redis.Client, key string, handler EventHandler, logger log.Logger) *Consumer {
	if key == "" {
		key = DefaultKey
	}

	return &Consumer{
		client:  client,
		key:     key,
		handler: handler,
		logger:  logger.WithField("queue", key),
		wait:    5 * time.Second,
	}
}

// Publish pushes an event at the end of the queue.
func (c *Consumer) Publish(ctx context.Context, e sharing.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.New("could not encode event", errors.WithCause(err))
	}

	if err := c.client.RPush(ctx, c.key, data).Err(); err != nil {
		return errors.New("could not publish event", errors.WithCause(err), errors.BadGateway())
	}
	return nil
}

// Run consumes the queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Printf("consuming events")
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := c.client.BLPop(ctx, c.wait, c.key).Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			c.logger.Errorf("could not pop event: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		// BLPOP answers with the key and the value
		c.handle(ctx, []byte(res[1]))
	}
}

// handle decodes one message. Malformed messages are logged and dropped.
func (c *Consumer) handle(ctx context.Context, payload []byte) (sharing.EventReport, bool) {
	var e sharing.Event
	if err := json.Unmarshal(payload, &e); err != nil {
		c.logger.Errorf("dropping malformed event %q: %v", payload, err)
		return sharing.EventReport{}, false
	}

	e, err := e.Normalize()
	if err != nil {
		c.logger.Errorf("dropping invalid event %q: %v", payload, err)
		return sharing.EventReport{}, false
	}

	report := c.handler.OnEvent(ctx, e)
	if n := report.Failed(); n > 0 {
		c.logger.Warnf("pass %s ended with %d failure(s)", report.PassID, n)
	}
	return report, true
}
