package sharing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobinette/coursedocs/errors"
)

func TestService_StartCron(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.StartCron(context.Background(), "every now and then")
	errors.AssertCode(t, err, 400)

	c, err := f.service.StartCron(context.Background(), "")
	require.NoError(t, err)
	defer c.Stop()

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Next.IsZero())
}
