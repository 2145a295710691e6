package sharing

import (
	"context"
	"fmt"

	"github.com/bobinette/coursedocs/errors"
)

type ShareAction string

const (
	ShareInsert ShareAction = "insert"
	ShareUpdate ShareAction = "update"
	SharePatch  ShareAction = "patch"
	ShareDelete ShareAction = "delete"
)

// ShareRequest acts on the permission of one user on one file, outside of
// any course pass.
type ShareRequest struct {
	Action ShareAction `json:"action"`
	FileID string      `json:"fileId"`
	UserID int         `json:"userId"`
	Role   Role        `json:"role,omitempty"`
}

type ShareResult struct {
	Action       ShareAction `json:"action"`
	Email        string      `json:"email"`
	PermissionID string      `json:"permissionId,omitempty"`
	Role         Role        `json:"role,omitempty"`
	Message      string      `json:"message"`
}

// Share applies a manual permission action:
//   - insert does nothing if the user already has access
//   - update sets the role (writer by default), inserting when absent
//   - patch sets the role to reader, inserting when absent
//   - delete removes the permission
func (s *Service) Share(ctx context.Context, req ShareRequest) (ShareResult, error) {
	if req.FileID == "" {
		return ShareResult{}, errors.New("missing file id", errors.BadRequest())
	}

	switch req.Role {
	case "", RoleReader, RoleWriter:
	default:
		return ShareResult{}, errors.New(fmt.Sprintf("role %q cannot be granted", req.Role), errors.BadRequest())
	}

	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return ShareResult{}, err
	}

	email := normalizeEmail(user.Email)
	if email == "" {
		return ShareResult{}, errors.New(fmt.Sprintf("user %d has no linked account", req.UserID), errors.NotFound())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perms, err := s.client.ListPermissions(ctx, req.FileID)
	if err != nil {
		return ShareResult{}, err
	}

	var existing *Permission
	for _, perm := range perms {
		if normalizeEmail(perm.Email) == email {
			perm := perm
			existing = &perm
			break
		}
	}

	res := ShareResult{Action: req.Action, Email: email}
	logger := s.logger.WithFields(map[string]interface{}{
		"file":   req.FileID,
		"email":  email,
		"action": string(req.Action),
	})

	switch req.Action {
	case ShareInsert:
		if existing != nil {
			res.PermissionID, res.Role = existing.ID, existing.Role
			res.Message = fmt.Sprintf("already shared as %s", existing.Role)
			return res, nil
		}
		return s.insert(ctx, req.FileID, email, roleOr(req.Role, RoleReader), res)
	case ShareUpdate, SharePatch:
		role := roleOr(req.Role, RoleWriter)
		if req.Action == SharePatch {
			role = RoleReader
		}

		if existing == nil {
			logger.Printf("no permission to %s, inserting", req.Action)
			return s.insert(ctx, req.FileID, email, role, res)
		}
		if existing.Role == RoleOwner {
			return ShareResult{}, errors.New("cannot change the role of the owner", errors.Forbidden())
		}

		if err := s.client.UpdatePermission(ctx, req.FileID, existing.ID, role); err != nil {
			return ShareResult{}, err
		}
		res.PermissionID, res.Role = existing.ID, role
		res.Message = fmt.Sprintf("role changed from %s to %s", existing.Role, role)
	case ShareDelete:
		if existing == nil {
			return ShareResult{}, errors.New(fmt.Sprintf("%s has no permission on %s", email, req.FileID), errors.NotFound())
		}
		if existing.Role == RoleOwner {
			return ShareResult{}, errors.New("cannot remove the owner", errors.Forbidden())
		}

		if err := s.client.RemovePermission(ctx, req.FileID, existing.ID); err != nil {
			return ShareResult{}, err
		}
		res.PermissionID = existing.ID
		res.Message = "permission removed"
	default:
		return ShareResult{}, errors.New(fmt.Sprintf("unknown action %q", req.Action), errors.BadRequest())
	}

	logger.Print(res.Message)
	return res, nil
}

func (s *Service) insert(ctx context.Context, fileID, email string, role Role, res ShareResult) (ShareResult, error) {
	id, err := s.client.InsertPermission(ctx, fileID, email, PrincipalUser, role)
	if err != nil {
		return ShareResult{}, err
	}

	res.PermissionID, res.Role = id, role
	res.Message = fmt.Sprintf("shared as %s", role)
	return res, nil
}

func roleOr(role, fallback Role) Role {
	if role == "" {
		return fallback
	}
	return role
}
