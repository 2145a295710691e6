package inmem

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

// LMS is an in-memory LMS store. It implements sharing.CourseRepository,
// sharing.UserRepository, sharing.AccessEvaluator and
// sharing.CapabilityChecker.
type LMS struct {
	Categories map[int]sharing.Category
	Courses    map[int]sharing.Course

	// Parents maps a subcategory to its parent category.
	Parents map[int]int

	Sections   map[int]sharing.Section
	Modules    map[int]sharing.Module

	// References maps a module to the Drive file it points to.
	References map[int]string

	// Enrolments maps a course to its enrolled user ids.
	Enrolments map[int][]int

	// Accounts maps a user to the email of its linked Google account.
	Accounts map[int]string

	// Restricted lists, per module, the users its restriction rules hide it
	// from.
	Restricted map[int]map[int]bool

	// Capabilities lists, per course and user, the capabilities they hold.
	Capabilities map[int]map[int][]string

	// Err is returned by every call when set.
	Err error
}

func NewLMS() *LMS {
	return &LMS{
		Categories:   make(map[int]sharing.Category),
		Courses:      make(map[int]sharing.Course),
		Parents:      make(map[int]int),
		Sections:     make(map[int]sharing.Section),
		Modules:      make(map[int]sharing.Module),
		References:   make(map[int]string),
		Enrolments:   make(map[int][]int),
		Accounts:     make(map[int]string),
		Restricted:   make(map[int]map[int]bool),
		Capabilities: make(map[int]map[int][]string),
	}
}

func (l *LMS) Restrict(moduleID, userID int) {
	if l.Restricted[moduleID] == nil {
		l.Restricted[moduleID] = make(map[int]bool)
	}
	l.Restricted[moduleID][userID] = true
}

func (l *LMS) Grant(courseID, userID int, capability string) {
	if l.Capabilities[courseID] == nil {
		l.Capabilities[courseID] = make(map[int][]string)
	}
	l.Capabilities[courseID][userID] = append(l.Capabilities[courseID][userID], capability)
}

func (l *LMS) CoursesInCategory(_ context.Context, categoryID int) ([]int, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	var ids []int
	for id, course := range l.Courses {
		if l.inCategory(course.CategoryID, categoryID) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// inCategory walks up the parents of categoryID looking for ancestorID.
func (l *LMS) inCategory(categoryID, ancestorID int) bool {
	for depth := 0; categoryID != 0 && depth <= len(l.Parents); depth++ {
		if categoryID == ancestorID {
			return true
		}
		categoryID = l.Parents[categoryID]
	}
	return false
}

func (l *LMS) ModulesInCourse(_ context.Context, courseID int) ([]sharing.Module, error) {
	return l.modules(func(m sharing.Module) bool { return m.CourseID == courseID })
}

func (l *LMS) ModulesInSection(_ context.Context, sectionID int) ([]sharing.Module, error) {
	return l.modules(func(m sharing.Module) bool { return m.SectionID == sectionID })
}

func (l *LMS) modules(keep func(sharing.Module) bool) ([]sharing.Module, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	var modules []sharing.Module
	for _, m := range l.Modules {
		if keep(m) {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].ID < modules[j].ID })
	return modules, nil
}

func (l *LMS) Module(_ context.Context, moduleID int) (sharing.Module, error) {
	if l.Err != nil {
		return sharing.Module{}, l.Err
	}

	m, ok := l.Modules[moduleID]
	if !ok {
		return sharing.Module{}, errors.New(fmt.Sprintf("module %d not found", moduleID), errors.NotFound())
	}
	return m, nil
}

func (l *LMS) ModuleContext(ctx context.Context, moduleID int) (sharing.ModuleContext, error) {
	m, err := l.Module(ctx, moduleID)
	if err != nil {
		return sharing.ModuleContext{}, err
	}

	course, ok := l.Courses[m.CourseID]
	if !ok {
		return sharing.ModuleContext{}, errors.New(fmt.Sprintf("course %d not found", m.CourseID), errors.NotFound())
	}

	category, ok := l.Categories[course.CategoryID]
	if !ok {
		return sharing.ModuleContext{}, errors.New(fmt.Sprintf("category %d not found", course.CategoryID), errors.NotFound())
	}

	mc := sharing.ModuleContext{
		Category: category,
		Course:   course,
		Module:   m,
	}
	if section, ok := l.Sections[m.SectionID]; ok {
		mc.Section = &section
	}
	return mc, nil
}

func (l *LMS) FileReference(_ context.Context, moduleID int) (string, error) {
	if l.Err != nil {
		return "", l.Err
	}
	return l.References[moduleID], nil
}

func (l *LMS) EnrolledUsers(_ context.Context, courseID int) ([]sharing.AuthenticatedUser, error) {
	if l.Err != nil {
		return nil, l.Err
	}

	var users []sharing.AuthenticatedUser
	for _, id := range l.Enrolments[courseID] {
		if email := l.Accounts[id]; email != "" {
			users = append(users, sharing.AuthenticatedUser{ID: id, Email: email})
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (l *LMS) Get(_ context.Context, userID int) (sharing.AuthenticatedUser, error) {
	if l.Err != nil {
		return sharing.AuthenticatedUser{}, l.Err
	}

	email, ok := l.Accounts[userID]
	if !ok {
		return sharing.AuthenticatedUser{}, errors.New(fmt.Sprintf("user %d has no linked account", userID), errors.NotFound())
	}
	return sharing.AuthenticatedUser{ID: userID, Email: email}, nil
}

func (l *LMS) UserCanSee(_ context.Context, mc sharing.ModuleContext, userID int) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}
	return !l.Restricted[mc.Module.ID][userID], nil
}

func (l *LMS) HasCapability(_ context.Context, userID, courseID int, capability string) (bool, error) {
	if l.Err != nil {
		return false, l.Err
	}

	for _, c := range l.Capabilities[courseID][userID] {
		if c == capability {
			return true, nil
		}
	}
	return false, nil
}
