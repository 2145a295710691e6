package sharing

import (
	"context"

	"gopkg.in/robfig/cron.v2"

	"github.com/bobinette/coursedocs/errors"
)

// DefaultSyncSpec runs the full resync daily at 3am.
const DefaultSyncSpec = "0 0 3 * * *"

// StartCron schedules SyncAll. The returned cron must be stopped by the
// caller.
func (s *Service) StartCron(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultSyncSpec
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report, err := s.SyncAll(ctx)
		if err != nil {
			s.logger.Errorf("could not run full sync: %v", err)
			return
		}
		s.logger.Printf("full sync ran on %d file(s) with %d failure(s)", len(report.Files), report.Failed())
	})
	if err != nil {
		return nil, errors.New("invalid sync schedule", errors.WithCause(err), errors.BadRequest())
	}

	c.Start()
	return c, nil
}
