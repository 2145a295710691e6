package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

// fakeDrive serves the permission endpoints of a single file, one
// permission per page.
type fakeDrive struct {
	mu     sync.Mutex
	fileID string
	perms  []*drive.Permission
	nextID int

	// unavailable is the number of 503 to answer, per method, before
	// serving the request.
	unavailable map[string]int

	notified []string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable[r.Method] > 0 {
		f.unavailable[r.Method]--
		writeError(w, http.StatusServiceUnavailable, "backendError")
		return
	}

	prefix := "/files/" + f.fileID + "/permissions"
	i := strings.Index(r.URL.Path, "/files/")
	if i < 0 || !strings.HasPrefix(r.URL.Path[i:], prefix) {
		writeError(w, http.StatusNotFound, "notFound")
		return
	}
	permissionID := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path[i:], prefix), "/")

	switch r.Method {
	case "GET":
		start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
		list := drive.PermissionList{}
		if start < len(f.perms) {
			list.Permissions = f.perms[start : start+1]
		}
		if start+1 < len(f.perms) {
			list.NextPageToken = strconv.Itoa(start + 1)
		}
		json.NewEncoder(w).Encode(list)
	case "POST":
		var perm drive.Permission
		json.NewDecoder(r.Body).Decode(&perm)
		if r.URL.Query().Get("sendNotificationEmail") != "false" {
			f.notified = append(f.notified, perm.EmailAddress)
		}

		f.nextID++
		perm.Id = fmt.Sprintf("p%d", f.nextID)
		f.perms = append(f.perms, &perm)
		json.NewEncoder(w).Encode(drive.Permission{Id: perm.Id})
	case "PATCH":
		var update drive.Permission
		json.NewDecoder(r.Body).Decode(&update)
		for _, perm := range f.perms {
			if perm.Id == permissionID {
				perm.Role = update.Role
				json.NewEncoder(w).Encode(drive.Permission{Id: perm.Id})
				return
			}
		}
		writeError(w, http.StatusNotFound, "notFound")
	case "DELETE":
		for i, perm := range f.perms {
			if perm.Id == permissionID {
				f.perms = append(f.perms[:i], f.perms[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "notFound")
	default:
		writeError(w, http.StatusMethodNotAllowed, "badRequest")
	}
}

func writeError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": reason,
			"errors":  []map[string]string{{"reason": reason, "message": reason}},
		},
	})
}

func newTestClient(t *testing.T, fake *fakeDrive) *Client {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	service, err := drive.NewService(
		context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	client := NewClientFromService(service)
	client.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return client
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDrive{
		fileID: "fileA",
		perms: []*drive.Permission{
			{Id: "o1", EmailAddress: "owner@x.com", Role: "owner", Type: "user"},
			{Id: "g1", EmailAddress: "staff@x.com", Role: "reader", Type: "group"},
		},
		nextID: 1,
	}
	client := newTestClient(t, fake)

	id, err := client.InsertPermission(ctx, "fileA", "a@x.com", sharing.PrincipalUser, sharing.RoleReader)
	require.NoError(t, err)
	assert.Equal(t, "p2", id)
	assert.Empty(t, fake.notified, "no notification email should be sent")

	require.NoError(t, client.UpdatePermission(ctx, "fileA", id, sharing.RoleWriter))

	perms, err := client.ListPermissions(ctx, "fileA")
	require.NoError(t, err)
	assert.Equal(t, []sharing.Permission{
		{ID: "o1", Email: "owner@x.com", Role: sharing.RoleOwner, Type: sharing.PrincipalUser},
		{ID: "g1", Email: "staff@x.com", Role: sharing.RoleReader, Type: sharing.PrincipalGroup},
		{ID: "p2", Email: "a@x.com", Role: sharing.RoleWriter, Type: sharing.PrincipalUser},
	}, perms)

	require.NoError(t, client.RemovePermission(ctx, "fileA", id))

	perms, err = client.ListPermissions(ctx, "fileA")
	require.NoError(t, err)
	assert.Len(t, perms, 2)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		client := newTestClient(t, &fakeDrive{fileID: "fileA"})

		_, err := client.ListPermissions(ctx, "missing")
		errors.AssertCode(t, err, http.StatusNotFound)
	})

	t.Run("missing permission", func(t *testing.T) {
		client := newTestClient(t, &fakeDrive{fileID: "fileA"})

		err := client.RemovePermission(ctx, "fileA", "p404")
		errors.AssertCode(t, err, http.StatusNotFound)
	})

	t.Run("retried", func(t *testing.T) {
		fake := &fakeDrive{fileID: "fileA", unavailable: map[string]int{"POST": 2}}
		client := newTestClient(t, fake)

		_, err := client.InsertPermission(ctx, "fileA", "a@x.com", sharing.PrincipalUser, sharing.RoleReader)
		require.NoError(t, err)
		assert.Len(t, fake.perms, 1)
	})

	t.Run("unavailable", func(t *testing.T) {
		fake := &fakeDrive{fileID: "fileA", unavailable: map[string]int{"DELETE": 10}}
		client := newTestClient(t, fake)

		err := client.RemovePermission(ctx, "fileA", "p1")
		errors.AssertCode(t, err, http.StatusBadGateway)
		assert.Equal(t, 7, fake.unavailable["DELETE"], "should stop after the retries")
	})
}
