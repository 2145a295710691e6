package mysql

import (
	"context"
	"fmt"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

type userRow struct {
	ID    int
	Email string
}

// UserRepository reads the Google accounts users linked through the
// googledocs repository.
type UserRepository struct {
	driver *Driver
}

func NewUserRepository(driver *Driver) *UserRepository {
	return &UserRepository{
		driver: driver,
	}
}

func (r *UserRepository) EnrolledUsers(ctx context.Context, courseID int) ([]sharing.AuthenticatedUser, error) {
	var rows []userRow
	err := r.driver.db.Raw(r.driver.sql(`
		SELECT DISTINCT u.id, grt.gmail AS email
		FROM {user} u
		JOIN {google_refreshtokens} grt ON grt.userid = u.id
		JOIN {user_enrolments} ue ON ue.userid = u.id
		JOIN {enrol} e ON e.id = ue.enrolid AND e.courseid = ?
		WHERE u.deleted = 0 AND u.id <> ?
		AND grt.gmail IS NOT NULL AND grt.gmail <> '' AND grt.gmail_active = 1
		ORDER BY u.id
	`), courseID, guestID).Scan(&rows).Error
	if err != nil {
		return nil, lookupError(fmt.Sprintf("could not list users of course %d", courseID), err)
	}

	users := make([]sharing.AuthenticatedUser, len(rows))
	for i, row := range rows {
		users[i] = sharing.AuthenticatedUser{ID: row.ID, Email: row.Email}
	}
	return users, nil
}

func (r *UserRepository) Get(ctx context.Context, userID int) (sharing.AuthenticatedUser, error) {
	var rows []userRow
	err := r.driver.db.Raw(r.driver.sql(`
		SELECT grt.userid AS id, grt.gmail AS email
		FROM {google_refreshtokens} grt
		JOIN {user} u ON u.id = grt.userid
		WHERE grt.userid = ? AND u.deleted = 0
		AND grt.gmail IS NOT NULL AND grt.gmail <> '' AND grt.gmail_active = 1
	`), userID).Scan(&rows).Error
	if err != nil {
		return sharing.AuthenticatedUser{}, lookupError(fmt.Sprintf("could not get user %d", userID), err)
	} else if len(rows) == 0 {
		return sharing.AuthenticatedUser{}, errors.New(fmt.Sprintf("user %d has no linked account", userID), errors.NotFound())
	}

	return sharing.AuthenticatedUser{ID: rows[0].ID, Email: rows[0].Email}, nil
}
