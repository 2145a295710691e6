package mysql

import (
	"context"
	"fmt"

	"github.com/bobinette/coursedocs/sharing"
)

type availabilityRow struct {
	Section *string
	Module  *string
}

// AccessEvaluator evaluates the restriction trees of a module and of its
// section for one user. Date and group conditions are supported, any other
// condition makes the module invisible.
type AccessEvaluator struct {
	driver *Driver
}

func NewAccessEvaluator(driver *Driver) *AccessEvaluator {
	return &AccessEvaluator{
		driver: driver,
	}
}

func (e *AccessEvaluator) UserCanSee(ctx context.Context, mc sharing.ModuleContext, userID int) (bool, error) {
	var rows []availabilityRow
	err := e.driver.db.Raw(e.driver.sql(`
		SELECT cs.availability AS section, cm.availability AS module
		FROM {course_modules} cm
		LEFT JOIN {course_sections} cs ON cs.id = cm.section
		WHERE cm.id = ?
	`), mc.Module.ID).Scan(&rows).Error
	if err != nil {
		return false, lookupError(fmt.Sprintf("could not get restrictions of module %d", mc.Module.ID), err)
	} else if len(rows) == 0 {
		return false, nil
	}

	var groupIDs []int
	err = e.driver.db.Raw(e.driver.sql(`
		SELECT gm.groupid
		FROM {groups_members} gm
		JOIN {groups} g ON g.id = gm.groupid
		WHERE gm.userid = ? AND g.courseid = ?
	`), userID, mc.Course.ID).Pluck("groupid", &groupIDs).Error
	if err != nil {
		return false, lookupError(fmt.Sprintf("could not get groups of user %d", userID), err)
	}

	groups := make(map[int]bool, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = true
	}

	t := now()
	for _, availability := range []*string{rows[0].Section, rows[0].Module} {
		if availability == nil {
			continue
		}

		ok, err := allows(*availability, t, groups)
		if err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
	return true, nil
}
