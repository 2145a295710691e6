package drive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	retry "github.com/sethvargo/go-retry"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

const (
	permissionFields = "nextPageToken, permissions(id, emailAddress, role, type)"

	reasonRateLimit     = "rateLimitExceeded"
	reasonUserRateLimit = "userRateLimitExceeded"
)

// Client implements sharing.PermissionClient on the Drive v3 API. Calls
// hitting a rate limit or a server error are retried with an exponential
// backoff.
type Client struct {
	service *drive.Service
	backoff func() retry.Backoff
}

// NewClient authenticates with a service account key. subject is the
// account the service account impersonates, typically the owner of the
// course documents. It can be empty if the files are shared with the
// service account itself.
func NewClient(ctx context.Context, credentials []byte, subject string) (*Client, error) {
	conf, err := google.JWTConfigFromJSON(credentials, drive.DriveScope)
	if err != nil {
		return nil, errors.New("could not read service account credentials", errors.WithCause(err))
	}
	conf.Subject = subject

	service, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, errors.New("could not create drive service", errors.WithCause(err))
	}

	return NewClientFromService(service), nil
}

func NewClientFromService(service *drive.Service) *Client {
	return &Client{
		service: service,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(4, retry.NewExponential(500*time.Millisecond))
		},
	}
}

func (c *Client) ListPermissions(ctx context.Context, fileID string) ([]sharing.Permission, error) {
	var perms []sharing.Permission
	err := c.do(ctx, func(ctx context.Context) error {
		perms = nil
		return c.service.Permissions.
			List(fileID).
			Fields(permissionFields).
			SupportsAllDrives(true).
			Pages(ctx, func(page *drive.PermissionList) error {
				for _, p := range page.Permissions {
					perms = append(perms, sharing.Permission{
						ID:    p.Id,
						Email: p.EmailAddress,
						Role:  sharing.Role(p.Role),
						Type:  sharing.PrincipalType(p.Type),
					})
				}
				return nil
			})
	})
	if err != nil {
		return nil, wrap(fmt.Sprintf("could not list permissions of %s", fileID), err)
	}

	return perms, nil
}

func (c *Client) InsertPermission(ctx context.Context, fileID, email string, typ sharing.PrincipalType, role sharing.Role) (string, error) {
	perm := &drive.Permission{
		Type:         string(typ),
		Role:         string(role),
		EmailAddress: email,
	}

	var id string
	err := c.do(ctx, func(ctx context.Context) error {
		created, err := c.service.Permissions.
			Create(fileID, perm).
			SendNotificationEmail(false).
			SupportsAllDrives(true).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		id = created.Id
		return nil
	})
	if err != nil {
		return "", wrap(fmt.Sprintf("could not share %s with %s", fileID, email), err)
	}

	return id, nil
}

func (c *Client) UpdatePermission(ctx context.Context, fileID, permissionID string, role sharing.Role) error {
	err := c.do(ctx, func(ctx context.Context) error {
		_, err := c.service.Permissions.
			Update(fileID, permissionID, &drive.Permission{Role: string(role)}).
			SupportsAllDrives(true).
			Fields("id").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return wrap(fmt.Sprintf("could not update permission %s of %s", permissionID, fileID), err)
	}
	return nil
}

func (c *Client) RemovePermission(ctx context.Context, fileID, permissionID string) error {
	err := c.do(ctx, func(ctx context.Context) error {
		return c.service.Permissions.
			Delete(fileID, permissionID).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
	})
	if err != nil {
		return wrap(fmt.Sprintf("could not remove permission %s of %s", permissionID, fileID), err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, f func(ctx context.Context) error) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := f(ctx)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func retryable(err error) bool {
	gerr, ok := err.(*googleapi.Error)
	if !ok {
		return false
	}

	if gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError {
		return true
	}

	if gerr.Code == http.StatusForbidden {
		for _, e := range gerr.Errors {
			if e.Reason == reasonRateLimit || e.Reason == reasonUserRateLimit {
				return true
			}
		}
	}
	return false
}

// wrap keeps the status of Drive errors: a missing file or permission is a
// NotFound, anything else is a BadGateway.
func wrap(msg string, err error) error {
	if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == http.StatusNotFound {
		return errors.New(msg, errors.WithCause(err), errors.NotFound())
	}
	return errors.New(msg, errors.WithCause(err), errors.BadGateway())
}
