package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

// Drive is an in-memory sharing.PermissionClient. Every call is recorded in
// Calls, and the calls listed in Fail return the matching error.
type Drive struct {
	mu     sync.Mutex
	files  map[string][]sharing.Permission
	nextID int

	// Calls records the mutating calls, e.g. "insert f1 a@x.com reader".
	Calls []string

	// Fail is keyed by "list:<file>", "insert:<email>", "update:<permission>"
	// or "remove:<permission>".
	Fail map[string]error
}

func NewDrive() *Drive {
	return &Drive{
		files: make(map[string][]sharing.Permission),
		Fail:  make(map[string]error),
	}
}

// Seed sets the current permissions of a file.
func (d *Drive) Seed(fileID string, perms ...sharing.Permission) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.files[fileID] = append([]sharing.Permission(nil), perms...)
}

// Access returns the role of every user principal of the file, keyed by email.
func (d *Drive) Access(fileID string) map[string]sharing.Role {
	d.mu.Lock()
	defer d.mu.Unlock()

	access := make(map[string]sharing.Role)
	for _, perm := range d.files[fileID] {
		if perm.Type == sharing.PrincipalUser {
			access[perm.Email] = perm.Role
		}
	}
	return access
}

func (d *Drive) ListPermissions(_ context.Context, fileID string) ([]sharing.Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.Fail["list:"+fileID]; err != nil {
		return nil, err
	}
	return append([]sharing.Permission(nil), d.files[fileID]...), nil
}

func (d *Drive) InsertPermission(_ context.Context, fileID, email string, typ sharing.PrincipalType, role sharing.Role) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, fmt.Sprintf("insert %s %s %s", fileID, email, role))
	if err := d.Fail["insert:"+email]; err != nil {
		return "", err
	}

	d.nextID++
	id := fmt.Sprintf("perm-%d", d.nextID)
	d.files[fileID] = append(d.files[fileID], sharing.Permission{
		ID:    id,
		Email: email,
		Role:  role,
		Type:  typ,
	})
	return id, nil
}

func (d *Drive) UpdatePermission(_ context.Context, fileID, permissionID string, role sharing.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, fmt.Sprintf("update %s %s %s", fileID, permissionID, role))
	if err := d.Fail["update:"+permissionID]; err != nil {
		return err
	}

	i, err := d.find(fileID, permissionID)
	if err != nil {
		return err
	}
	d.files[fileID][i].Role = role
	return nil
}

func (d *Drive) RemovePermission(_ context.Context, fileID, permissionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = append(d.Calls, fmt.Sprintf("remove %s %s", fileID, permissionID))
	if err := d.Fail["remove:"+permissionID]; err != nil {
		return err
	}

	i, err := d.find(fileID, permissionID)
	if err != nil {
		return err
	}
	perms := d.files[fileID]
	d.files[fileID] = append(perms[:i:i], perms[i+1:]...)
	return nil
}

// Reset forgets the recorded calls.
func (d *Drive) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Calls = nil
}

func (d *Drive) find(fileID, permissionID string) (int, error) {
	for i, perm := range d.files[fileID] {
		if perm.ID == permissionID {
			return i, nil
		}
	}
	return 0, errors.New(fmt.Sprintf("permission %s not found on %s", permissionID, fileID), errors.NotFound())
}
