package sharing

import (
	"context"
	"sort"

	"github.com/bobinette/coursedocs/log"
)

type Grant struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Revoke struct {
	Email        string `json:"email"`
	PermissionID string `json:"permissionId"`
}

type RoleChange struct {
	Email        string `json:"email"`
	PermissionID string `json:"permissionId"`
	From         Role   `json:"from"`
	To           Role   `json:"to"`
}

// Plan is the minimal set of Drive calls bringing a file to its desired
// state. Every list is sorted by email.
type Plan struct {
	FileID string       `json:"fileId"`
	Grant  []Grant      `json:"grant"`
	Revoke []Revoke     `json:"revoke"`
	Update []RoleChange `json:"update"`
}

func (p Plan) Empty() bool {
	return len(p.Grant) == 0 && len(p.Revoke) == 0 && len(p.Update) == 0
}

// Reconcile diffs the desired access of a file against the permissions it
// currently has. granted must only contain principals this service manages.
// Owner permissions are never updated.
func Reconcile(fileID string, desired map[string]Role, granted map[string]Permission) Plan {
	plan := Plan{FileID: fileID}

	for _, email := range sortedKeys(desired) {
		role := desired[email]
		perm, ok := granted[email]
		if !ok {
			plan.Grant = append(plan.Grant, Grant{Email: email, Role: role})
			continue
		}

		if perm.Role != role && perm.Role != RoleOwner {
			plan.Update = append(plan.Update, RoleChange{
				Email:        email,
				PermissionID: perm.ID,
				From:         perm.Role,
				To:           role,
			})
		}
	}

	for _, email := range sortedKeys(granted) {
		if _, ok := desired[email]; ok {
			continue
		}
		plan.Revoke = append(plan.Revoke, Revoke{Email: email, PermissionID: granted[email].ID})
	}

	return plan
}

// ReconcileEmails is Reconcile for the reader-only policy: it returns the
// emails to grant and the permission ids to revoke.
func ReconcileEmails(fileID string, desired []string, granted map[string]string) ([]string, []string) {
	d := make(map[string]Role, len(desired))
	for _, email := range desired {
		d[email] = RoleReader
	}

	g := make(map[string]Permission, len(granted))
	for email, id := range granted {
		g[email] = Permission{ID: id, Email: email, Role: RoleReader, Type: PrincipalUser}
	}

	plan := Reconcile(fileID, d, g)

	toGrant := make([]string, len(plan.Grant))
	for i, grant := range plan.Grant {
		toGrant[i] = grant.Email
	}

	toRevoke := make([]string, len(plan.Revoke))
	for i, revoke := range plan.Revoke {
		toRevoke[i] = revoke.PermissionID
	}
	return toGrant, toRevoke
}

type Failure struct {
	Op     string `json:"op"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

// Report summarises what a pass did on one file.
type Report struct {
	FileID   string    `json:"fileId"`
	Granted  []string  `json:"granted"`
	Revoked  []string  `json:"revoked"`
	Updated  []string  `json:"updated"`
	Failures []Failure `json:"failures"`
}

func (r *Report) fail(logger log.Logger, op, email string, err error) {
	logger.WithFields(map[string]interface{}{
		"file":  r.FileID,
		"op":    op,
		"email": email,
	}).Errorf("could not %s permission: %v", op, err)
	r.Failures = append(r.Failures, Failure{Op: op, Email: email, Reason: err.Error()})
}

// Apply executes the plan. Each call is independent: a failure is logged and
// recorded in the report, then the next call is issued.
func Apply(ctx context.Context, client PermissionClient, plan Plan, logger log.Logger) Report {
	report := Report{FileID: plan.FileID}

	for _, grant := range plan.Grant {
		if _, err := client.InsertPermission(ctx, plan.FileID, grant.Email, PrincipalUser, grant.Role); err != nil {
			report.fail(logger, "insert", grant.Email, err)
			continue
		}
		report.Granted = append(report.Granted, grant.Email)
	}

	for _, change := range plan.Update {
		if err := client.UpdatePermission(ctx, plan.FileID, change.PermissionID, change.To); err != nil {
			report.fail(logger, "update", change.Email, err)
			continue
		}
		report.Updated = append(report.Updated, change.Email)
	}

	for _, revoke := range plan.Revoke {
		if err := client.RemovePermission(ctx, plan.FileID, revoke.PermissionID); err != nil {
			report.fail(logger, "remove", revoke.Email, err)
			continue
		}
		report.Revoked = append(report.Revoked, revoke.Email)
	}

	return report
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
