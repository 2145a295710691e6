package mysql

import (
	"context"
	"fmt"
)

// Context level of courses.
const contextCourse = 50

type CapabilityChecker struct {
	driver *Driver
}

func NewCapabilityChecker(driver *Driver) *CapabilityChecker {
	return &CapabilityChecker{
		driver: driver,
	}
}

// HasCapability checks the roles assigned to the user in the course
// context. Category and system assignments and permission overrides are not
// taken into account.
func (c *CapabilityChecker) HasCapability(ctx context.Context, userID, courseID int, capability string) (bool, error) {
	var count int
	err := c.driver.db.Raw(c.driver.sql(`
		SELECT COUNT(*)
		FROM {role_assignments} ra
		JOIN {context} ctx ON ctx.id = ra.contextid AND ctx.contextlevel = ? AND ctx.instanceid = ?
		JOIN {role_capabilities} rc ON rc.roleid = ra.roleid AND rc.capability = ? AND rc.permission = 1
		WHERE ra.userid = ?
	`), contextCourse, courseID, capability, userID).Row().Scan(&count)
	if err != nil {
		return false, lookupError(fmt.Sprintf("could not check %s of user %d", capability, userID), err)
	}
	return count > 0, nil
}
