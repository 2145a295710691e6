package sharing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/log"
)

type Service struct {
	courses   CourseRepository
	users     UserRepository
	links     LinkRepository
	client    PermissionClient
	evaluator AccessEvaluator
	roles     RolePolicy

	// moduleTypes restricts the modules that are synced. Empty means all.
	moduleTypes map[string]bool

	logger log.Logger

	// mu serialises the passes: two events touching the same file must not
	// interleave their list/insert/remove calls.
	mu sync.Mutex
}

func NewService(
	courses CourseRepository,
	users UserRepository,
	links LinkRepository,
	client PermissionClient,
	evaluator AccessEvaluator,
	roles RolePolicy,
	logger log.Logger,
	moduleTypes ...string,
) *Service {
	if roles == nil {
		roles = ReaderPolicy{}
	}

	types := make(map[string]bool, len(moduleTypes))
	for _, t := range moduleTypes {
		types[t] = true
	}

	return &Service{
		courses:   courses,
		users:     users,
		links:     links,
		client:    client,
		evaluator: evaluator,
		roles:     roles,

		moduleTypes: types,

		logger: logger,
	}
}

// pass holds what is memoised during one reconciliation pass. Visibility is
// never memoised, only the enrolment lists.
type pass struct {
	logger   log.Logger
	enrolled map[int][]AuthenticatedUser
	report   *EventReport
}

func (s *Service) newPass(e Event) *pass {
	id := uuid.New().String()
	return &pass{
		logger: s.logger.WithFields(map[string]interface{}{
			"pass":  id,
			"event": string(e.Kind),
		}),
		enrolled: make(map[int][]AuthenticatedUser),
		report:   &EventReport{PassID: id, Event: e},
	}
}

func (p *pass) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Error(msg)
	p.report.Errors = append(p.report.Errors, msg)
}

func (s *Service) enrolledUsers(ctx context.Context, p *pass, courseID int) ([]AuthenticatedUser, error) {
	if users, ok := p.enrolled[courseID]; ok {
		return users, nil
	}

	users, err := s.users.EnrolledUsers(ctx, courseID)
	if err != nil {
		return nil, err
	}
	p.enrolled[courseID] = users
	return users, nil
}

func (s *Service) syncedType(moduleType string) bool {
	return len(s.moduleTypes) == 0 || s.moduleTypes[moduleType]
}

// OnEvent recomputes the access of every file in the scope of the event. It
// never fails: lookup and Drive errors are logged and collected in the
// report, and the pass goes on with the rest of its scope.
func (s *Service) OnEvent(ctx context.Context, e Event) EventReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := e.Normalize()
	p := s.newPass(e)
	if err != nil {
		p.errorf("invalid event: %v", err)
		return *p.report
	}
	p.logger.Debugf("starting pass for %+v", e)

	var files []string
	var extraCourses []int

	switch e.Kind {
	case EventCategoryUpdated:
		courses, err := s.courses.CoursesInCategory(ctx, e.CategoryID)
		if err != nil {
			p.errorf("could not list courses of category %d: %v", e.CategoryID, err)
			break
		}
		for _, courseID := range courses {
			files = append(files, s.courseFiles(ctx, p, courseID)...)
		}
	case EventCourseUpdated:
		files = s.courseFiles(ctx, p, e.CourseID)
	case EventSectionUpdated:
		modules, err := s.courses.ModulesInSection(ctx, e.SectionID)
		if err != nil {
			p.errorf("could not list modules of section %d: %v", e.SectionID, err)
			break
		}
		files = s.moduleFiles(ctx, p, modules)
	case EventModuleCreated, EventModuleUpdated:
		module, ok := s.eventModule(ctx, p, e)
		if !ok || !s.syncedType(module.Type) {
			break
		}

		var previous LinkedFile
		files, previous = s.syncLink(ctx, p, module)
		// Users of the course stay in scope of a file the module stopped
		// linking.
		extraCourses = courseIDs(module.CourseID, previous.CourseID)
	case EventModuleDeleted:
		if e.ModuleType != "" && !s.syncedType(e.ModuleType) {
			break
		}
		link, err := s.links.Get(ctx, e.ModuleID)
		if err != nil {
			p.errorf("could not get link of module %d: %v", e.ModuleID, err)
			break
		} else if link.FileID == "" {
			p.logger.Debugf("module %d has no linked file", e.ModuleID)
			break
		}
		if err := s.links.Delete(ctx, e.ModuleID); err != nil {
			p.errorf("could not delete link of module %d: %v", e.ModuleID, err)
			break
		}
		files = []string{link.FileID}
		extraCourses = courseIDs(e.CourseID, link.CourseID)
	}

	for _, fileID := range uniqueSorted(files) {
		report := s.reconcileFile(ctx, p, fileID, extraCourses)
		p.report.Files = append(p.report.Files, report)
	}

	p.logger.Printf("pass done: %d file(s), %d failure(s)", len(p.report.Files), p.report.Failed())
	return *p.report
}

// eventModule completes the module of a module event with what the LMS
// knows when the event does not carry its type or course.
func (s *Service) eventModule(ctx context.Context, p *pass, e Event) (Module, bool) {
	module := Module{ID: e.ModuleID, CourseID: e.CourseID, Type: e.ModuleType}
	if module.Type != "" && module.CourseID > 0 {
		return module, true
	}

	lms, err := s.courses.Module(ctx, e.ModuleID)
	if err != nil {
		p.errorf("could not get module %d: %v", e.ModuleID, err)
		return Module{}, false
	}
	if module.Type == "" {
		module.Type = lms.Type
	}
	if module.CourseID <= 0 {
		module.CourseID = lms.CourseID
	}
	return module, true
}

func (s *Service) courseFiles(ctx context.Context, p *pass, courseID int) []string {
	modules, err := s.courses.ModulesInCourse(ctx, courseID)
	if err != nil {
		p.errorf("could not list modules of course %d: %v", courseID, err)
		return nil
	}
	return s.moduleFiles(ctx, p, modules)
}

func (s *Service) moduleFiles(ctx context.Context, p *pass, modules []Module) []string {
	var files []string
	for _, module := range modules {
		if !s.syncedType(module.Type) {
			continue
		}

		link, err := s.links.Get(ctx, module.ID)
		if err != nil {
			p.errorf("could not get link of module %d: %v", module.ID, err)
			continue
		} else if link.FileID != "" {
			files = append(files, link.FileID)
		}
	}
	return files
}

// syncLink brings the registry in line with the file the module references.
// It returns the files whose access must be recomputed, the current one and
// the one it replaced if any, along with the link found before the update.
func (s *Service) syncLink(ctx context.Context, p *pass, module Module) ([]string, LinkedFile) {
	existing, err := s.links.Get(ctx, module.ID)
	if err != nil {
		p.errorf("could not get link of module %d: %v", module.ID, err)
		return nil, LinkedFile{}
	}

	ref, err := s.courses.FileReference(ctx, module.ID)
	if err != nil {
		p.errorf("could not get file reference of module %d: %v", module.ID, err)
		if existing.FileID != "" {
			return []string{existing.FileID}, existing
		}
		return nil, existing
	}

	if ref == "" {
		if existing.FileID == "" {
			return nil, existing
		}
		if err := s.links.Delete(ctx, module.ID); err != nil {
			p.errorf("could not delete link of module %d: %v", module.ID, err)
		}
		p.logger.Printf("module %d no longer links %s", module.ID, existing.FileID)
		return []string{existing.FileID}, existing
	}

	link := LinkedFile{ModuleID: module.ID, FileID: ref, CourseID: module.CourseID}
	if link == existing {
		return []string{ref}, existing
	}

	if err := s.links.Put(ctx, link); err != nil {
		p.errorf("could not save link of module %d: %v", module.ID, err)
		if existing.FileID != "" {
			return []string{existing.FileID}, existing
		}
		return nil, existing
	}

	switch existing.FileID {
	case ref:
	case "":
		p.logger.Printf("module %d now links %s", module.ID, ref)
	default:
		p.logger.Printf("module %d now links %s instead of %s", module.ID, ref, existing.FileID)
		return []string{existing.FileID, ref}, existing
	}
	return []string{ref}, existing
}

// reconcileFile recomputes the desired access of a file over every module
// that links it. extraCourses widens the set of managed principals, which is
// needed when the module that put users in scope was just deleted.
//
// Links of modules the LMS no longer knows are dropped once the file has been
// reconciled without failure. Until then, the users of their last known
// course stay in scope.
func (s *Service) reconcileFile(ctx context.Context, p *pass, fileID string, extraCourses []int) Report {
	logger := p.logger.WithField("file", fileID)
	report := Report{FileID: fileID}
	abort := func(format string, args ...interface{}) Report {
		msg := fmt.Sprintf(format, args...)
		logger.Errorf("skipping file: %s", msg)
		report.Failures = append(report.Failures, Failure{Op: "lookup", Reason: msg})
		return report
	}

	moduleIDs, err := s.links.ModulesForFile(ctx, fileID)
	if err != nil {
		return abort("could not list modules: %v", err)
	}

	desired := make(map[string]Role)
	scope := make(map[string]bool)
	scopeCourses := append([]int(nil), extraCourses...)
	var stale []int

	for _, moduleID := range moduleIDs {
		mc, err := s.courses.ModuleContext(ctx, moduleID)
		if errors.IsNotFound(err) {
			link, lerr := s.links.Get(ctx, moduleID)
			if lerr != nil {
				return abort("could not get link of module %d: %v", moduleID, lerr)
			}
			logger.Warnf("module %d not found, its link will be dropped: %v", moduleID, err)
			stale = append(stale, moduleID)
			scopeCourses = append(scopeCourses, link.CourseID)
			continue
		} else if err != nil {
			return abort("could not get context of module %d: %v", moduleID, err)
		}

		if !s.syncedType(mc.Module.Type) {
			continue
		}

		users, err := s.enrolledUsers(ctx, p, mc.Course.ID)
		if err != nil {
			return abort("could not list users of course %d: %v", mc.Course.ID, err)
		}

		for _, user := range users {
			email := normalizeEmail(user.Email)
			if email == "" {
				continue
			}
			scope[email] = true

			if !IsVisible(ctx, mc, user.ID, s.evaluator) {
				continue
			}

			role, err := s.roles.Role(ctx, user.ID, mc.Course.ID)
			if role == "" {
				role = RoleReader
			}
			if err != nil {
				logger.Warnf("could not resolve role of user %d, using %s: %v", user.ID, role, err)
			}
			if role.rank() > desired[email].rank() {
				desired[email] = role
			}
		}
	}

	for _, courseID := range courseIDs(scopeCourses...) {
		users, err := s.enrolledUsers(ctx, p, courseID)
		if err != nil {
			return abort("could not list users of course %d: %v", courseID, err)
		}
		for _, user := range users {
			if email := normalizeEmail(user.Email); email != "" {
				scope[email] = true
			}
		}
	}

	perms, err := s.client.ListPermissions(ctx, fileID)
	if err != nil {
		return abort("could not list permissions: %v", err)
	}

	granted := make(map[string]Permission)
	for _, perm := range perms {
		email := normalizeEmail(perm.Email)
		if perm.Type != PrincipalUser || !scope[email] {
			continue
		}

		if perm.Role == RoleOwner {
			// The owner keeps its access whatever the course says.
			delete(desired, email)
			continue
		}
		granted[email] = perm
	}

	plan := Reconcile(fileID, desired, granted)
	if plan.Empty() {
		logger.Debugf("nothing to do")
	} else {
		logger.Printf("applying plan: %d grant(s), %d update(s), %d revoke(s)", len(plan.Grant), len(plan.Update), len(plan.Revoke))
		report = Apply(ctx, s.client, plan, logger)
	}

	if len(report.Failures) > 0 {
		return report
	}
	for _, moduleID := range stale {
		if err := s.links.Delete(ctx, moduleID); err != nil {
			logger.Errorf("could not drop link of module %d: %v", moduleID, err)
			report.Failures = append(report.Failures, Failure{Op: "unlink", Reason: err.Error()})
			continue
		}
		logger.Printf("dropped link of missing module %d", moduleID)
	}
	return report
}

// SyncCourse recomputes every file linked from a course.
func (s *Service) SyncCourse(ctx context.Context, courseID int) EventReport {
	return s.OnEvent(ctx, Event{Kind: EventCourseUpdated, CourseID: courseID})
}

// SyncAll recomputes every file of the registry.
func (s *Service) SyncAll(ctx context.Context) (EventReport, error) {
	files, err := s.links.Files(ctx)
	if err != nil {
		return EventReport{}, errors.New("could not list linked files", errors.WithCause(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.newPass(Event{})
	p.logger = p.logger.WithField("event", "sync_all")
	for _, fileID := range uniqueSorted(files) {
		p.report.Files = append(p.report.Files, s.reconcileFile(ctx, p, fileID, nil))
	}

	p.logger.Printf("full sync done: %d file(s), %d failure(s)", len(p.report.Files), p.report.Failed())
	return *p.report, nil
}

// Link returns the file linked to a module.
func (s *Service) Link(ctx context.Context, moduleID int) (LinkedFile, error) {
	link, err := s.links.Get(ctx, moduleID)
	if err != nil {
		return LinkedFile{}, err
	} else if link.FileID == "" {
		return LinkedFile{}, errors.New(fmt.Sprintf("module %d has no linked file", moduleID), errors.NotFound())
	}
	return link, nil
}

// Permissions lists the current Drive permissions of a file.
func (s *Service) Permissions(ctx context.Context, fileID string) ([]Permission, error) {
	return s.client.ListPermissions(ctx, fileID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// courseIDs removes the zero and duplicate ids.
func courseIDs(ids ...int) []int {
	var res []int
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

func uniqueSorted(values []string) []string {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = true
		}
	}
	return sortedKeys(set)
}
