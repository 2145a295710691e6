package sharing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coderrors "github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/log"
	"github.com/bobinette/coursedocs/sharing"
	"github.com/bobinette/coursedocs/sharing/inmem"
)

const manageActivities = "moodle/course:manageactivities"

type fixture struct {
	lms     *inmem.LMS
	links   *inmem.LinkRepository
	drive   *inmem.Drive
	service *sharing.Service
}

// newFixture builds a category holding two courses. Course 10 has module 1000
// linking fileA and three enrolled users, one of which has no Google account.
// Course 11 has module 1100 linking fileB and one user.
func newFixture(t *testing.T, roles sharing.RolePolicy) *fixture {
	lms := inmem.NewLMS()
	lms.Categories[1] = sharing.Category{ID: 1, Visible: true}
	lms.Courses[10] = sharing.Course{ID: 10, CategoryID: 1, Visible: true}
	lms.Courses[11] = sharing.Course{ID: 11, CategoryID: 1, Visible: true}
	lms.Sections[100] = sharing.Section{ID: 100, CourseID: 10, Number: 1, Visible: true, Available: true}
	lms.Sections[110] = sharing.Section{ID: 110, CourseID: 11, Number: 1, Visible: true, Available: true}
	lms.Modules[1000] = sharing.Module{ID: 1000, CourseID: 10, SectionID: 100, Type: "resource", Visible: true}
	lms.Modules[1100] = sharing.Module{ID: 1100, CourseID: 11, SectionID: 110, Type: "resource", Visible: true}
	lms.References[1000] = "fileA"
	lms.References[1100] = "fileB"
	lms.Enrolments[10] = []int{1, 2, 3}
	lms.Enrolments[11] = []int{4}
	lms.Accounts[1] = "a@x.com"
	lms.Accounts[2] = "B@x.com"
	lms.Accounts[4] = "d@x.com"

	links := inmem.NewLinkRepository()
	drive := inmem.NewDrive()

	return &fixture{
		lms:     lms,
		links:   links,
		drive:   drive,
		service: sharing.NewService(lms, lms, links, drive, lms, roles, log.Discard(), "resource"),
	}
}

func (f *fixture) create(t *testing.T, moduleID, courseID int) sharing.EventReport {
	report := f.service.OnEvent(context.Background(), sharing.Event{
		Kind:     sharing.EventModuleCreated,
		CourseID: courseID,
		ModuleID: moduleID,
	})
	require.Empty(t, report.Errors)
	return report
}

func readers(emails ...string) map[string]sharing.Role {
	m := make(map[string]sharing.Role, len(emails))
	for _, email := range emails {
		m[email] = sharing.RoleReader
	}
	return m
}

func TestService_ModuleCreated(t *testing.T) {
	f := newFixture(t, nil)

	report := f.create(t, 1000, 10)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "fileA", report.Files[0].FileID)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, report.Files[0].Granted)
	assert.NotEmpty(t, report.PassID)
	assert.Equal(t, readers("a@x.com", "b@x.com"), f.drive.Access("fileA"))

	link, err := f.service.Link(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, sharing.LinkedFile{ModuleID: 1000, FileID: "fileA", CourseID: 10}, link)

	// Replaying the event changes nothing
	f.drive.Reset()
	report = f.create(t, 1000, 10)
	assert.Empty(t, f.drive.Calls)
	assert.Equal(t, 0, report.Failed())
}

func TestService_ModuleCreated_LMSEventName(t *testing.T) {
	f := newFixture(t, nil)

	report := f.service.OnEvent(context.Background(), sharing.Event{
		Kind:     `\core\event\course_module_created`,
		CourseID: 10,
		ModuleID: 1000,
	})
	assert.Empty(t, report.Errors)
	assert.Equal(t, sharing.EventModuleCreated, report.Event.Kind)
	assert.Equal(t, readers("a@x.com", "b@x.com"), f.drive.Access("fileA"))
}

func TestService_RestrictedModule(t *testing.T) {
	f := newFixture(t, nil)
	f.lms.Restrict(1000, 2)

	f.create(t, 1000, 10)
	assert.Equal(t, readers("a@x.com"), f.drive.Access("fileA"))
}

func TestService_IgnoredModuleType(t *testing.T) {
	f := newFixture(t, nil)
	f.lms.Modules[1200] = sharing.Module{ID: 1200, CourseID: 10, SectionID: 100, Type: "quiz", Visible: true}
	f.lms.References[1200] = "fileQ"

	report := f.create(t, 1200, 10)
	assert.Empty(t, report.Files)
	assert.Empty(t, f.drive.Calls)

	_, err := f.service.Link(context.Background(), 1200)
	coderrors.AssertCode(t, err, 404)
}

func TestService_CourseHidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.lms.Enrolments[10] = append(f.lms.Enrolments[10], 5)
	f.lms.Accounts[5] = "owner@x.com"
	f.drive.Seed("fileA",
		sharing.Permission{ID: "o1", Email: "owner@x.com", Role: sharing.RoleOwner, Type: sharing.PrincipalUser},
		sharing.Permission{ID: "e1", Email: "ext@y.com", Role: sharing.RoleWriter, Type: sharing.PrincipalUser},
		sharing.Permission{ID: "g1", Email: "staff@x.com", Role: sharing.RoleReader, Type: sharing.PrincipalGroup},
	)

	f.create(t, 1000, 10)
	assert.Equal(t, map[string]sharing.Role{
		"owner@x.com": sharing.RoleOwner,
		"ext@y.com":   sharing.RoleWriter,
		"a@x.com":     sharing.RoleReader,
		"b@x.com":     sharing.RoleReader,
	}, f.drive.Access("fileA"))

	f.lms.Courses[10] = sharing.Course{ID: 10, CategoryID: 1, Visible: false}
	report := f.service.SyncCourse(ctx, 10)
	require.Len(t, report.Files, 1)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, report.Files[0].Revoked)

	// Owner and principals outside the course are left alone
	assert.Equal(t, map[string]sharing.Role{
		"owner@x.com": sharing.RoleOwner,
		"ext@y.com":   sharing.RoleWriter,
	}, f.drive.Access("fileA"))

	perms, err := f.service.Permissions(ctx, "fileA")
	require.NoError(t, err)
	assert.Len(t, perms, 3)
}

func TestService_CategoryHidden(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, 1000, 10)
	f.create(t, 1100, 11)
	assert.Equal(t, readers("d@x.com"), f.drive.Access("fileB"))

	// Everything below the category is still visible
	f.lms.Categories[1] = sharing.Category{ID: 1, Visible: false}
	report := f.service.OnEvent(context.Background(), sharing.Event{Kind: sharing.EventCategoryUpdated, CategoryID: 1})
	require.Len(t, report.Files, 2)
	assert.Equal(t, 0, report.Failed())

	assert.Empty(t, f.drive.Access("fileA"))
	assert.Empty(t, f.drive.Access("fileB"))
}

func TestService_SubcategoryHidden(t *testing.T) {
	f := newFixture(t, nil)
	f.lms.Categories[2] = sharing.Category{ID: 2, Visible: true}
	f.lms.Parents[2] = 1
	f.lms.Courses[11] = sharing.Course{ID: 11, CategoryID: 2, Visible: true}
	f.create(t, 1000, 10)
	f.create(t, 1100, 11)

	// The LMS hides the subcategories along with their parent
	f.lms.Categories[1] = sharing.Category{ID: 1, Visible: false}
	f.lms.Categories[2] = sharing.Category{ID: 2, Visible: false}
	report := f.service.OnEvent(context.Background(), sharing.Event{Kind: sharing.EventCategoryUpdated, CategoryID: 1})
	require.Len(t, report.Files, 2)
	assert.Equal(t, 0, report.Failed())

	assert.Empty(t, f.drive.Access("fileA"))
	assert.Empty(t, f.drive.Access("fileB"))
}

func TestService_SectionUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, 1000, 10)

	f.lms.Sections[100] = sharing.Section{ID: 100, CourseID: 10, Number: 1, Visible: true, Available: false}
	report := f.service.OnEvent(context.Background(), sharing.Event{Kind: sharing.EventSectionUpdated, CourseID: 10, SectionID: 100})
	require.Len(t, report.Files, 1)
	assert.Empty(t, f.drive.Access("fileA"))
}

func TestService_ModuleDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.create(t, 1000, 10)

	delete(f.lms.Modules, 1000)
	delete(f.lms.References, 1000)
	report := f.service.OnEvent(ctx, sharing.Event{Kind: sharing.EventModuleDeleted, CourseID: 10, ModuleID: 1000})
	require.Len(t, report.Files, 1)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, report.Files[0].Revoked)
	assert.Empty(t, f.drive.Access("fileA"))

	_, err := f.service.Link(ctx, 1000)
	coderrors.AssertCode(t, err, 404)

	// The deletion of a module without link is a no-op
	f.drive.Reset()
	report = f.service.OnEvent(ctx, sharing.Event{Kind: sharing.EventModuleDeleted, CourseID: 10, ModuleID: 1000})
	assert.Empty(t, report.Files)
	assert.Empty(t, report.Errors)
	assert.Empty(t, f.drive.Calls)
}

func TestService_ModuleRelinked(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, 1000, 10)

	f.lms.References[1000] = "fileC"
	report := f.service.OnEvent(context.Background(), sharing.Event{Kind: sharing.EventModuleUpdated, CourseID: 10, ModuleID: 1000})
	require.Len(t, report.Files, 2)

	assert.Empty(t, f.drive.Access("fileA"))
	assert.Equal(t, readers("a@x.com", "b@x.com"), f.drive.Access("fileC"))
}

func TestService_ModuleUnlinked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.create(t, 1000, 10)

	delete(f.lms.References, 1000)
	f.service.OnEvent(ctx, sharing.Event{Kind: sharing.EventModuleUpdated, CourseID: 10, ModuleID: 1000})
	assert.Empty(t, f.drive.Access("fileA"))

	_, err := f.service.Link(ctx, 1000)
	coderrors.AssertCode(t, err, 404)
}

func TestService_ModuleEventWithoutCourse(t *testing.T) {
	changes := map[string]struct {
		change func(*fixture)
		fileC  map[string]sharing.Role
	}{
		"relinked": {
			change: func(f *fixture) { f.lms.References[1000] = "fileC" },
			fileC:  readers("a@x.com", "b@x.com"),
		},
		"unlinked": {
			change: func(f *fixture) { delete(f.lms.References, 1000) },
			fileC:  map[string]sharing.Role{},
		},
	}

	for _, kind := range []sharing.EventKind{sharing.EventModuleCreated, sharing.EventModuleUpdated} {
		for name, tt := range changes {
			t.Run(string(kind)+" "+name, func(t *testing.T) {
				f := newFixture(t, nil)
				f.create(t, 1000, 10)

				tt.change(f)
				report := f.service.OnEvent(context.Background(), sharing.Event{Kind: kind, ModuleID: 1000})
				assert.Empty(t, report.Errors)
				assert.Equal(t, 0, report.Failed())

				assert.Empty(t, f.drive.Access("fileA"))
				assert.Equal(t, tt.fileC, f.drive.Access("fileC"))
			})
		}
	}
}

func TestService_ModuleVanished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.create(t, 1000, 10)
	f.create(t, 1100, 11)

	// Module 1000 disappears without a deletion event
	delete(f.lms.Modules, 1000)
	delete(f.lms.References, 1000)
	f.drive.Fail["remove:perm-2"] = errors.New("drive unavailable")

	report, err := f.service.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, []string{"a@x.com"}, report.Files[0].Revoked)
	require.Len(t, report.Files[0].Failures, 1)
	assert.Equal(t, readers("b@x.com"), f.drive.Access("fileA"))

	// The link is kept until the revocations go through
	link, err := f.service.Link(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "fileA", link.FileID)

	delete(f.drive.Fail, "remove:perm-2")
	report, err = f.service.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Files, 2)
	assert.Equal(t, []string{"b@x.com"}, report.Files[0].Revoked)
	assert.Empty(t, report.Files[1].Revoked)
	assert.Empty(t, f.drive.Access("fileA"))
	assert.Equal(t, readers("d@x.com"), f.drive.Access("fileB"))

	_, err = f.service.Link(ctx, 1000)
	coderrors.AssertCode(t, err, 404)

	files, err := f.links.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fileB"}, files)
}

func TestService_FileSharedByTwoCourses(t *testing.T) {
	f := newFixture(t, nil)
	f.lms.References[1100] = "fileA"
	f.create(t, 1000, 10)
	f.create(t, 1100, 11)
	assert.Equal(t, readers("a@x.com", "b@x.com", "d@x.com"), f.drive.Access("fileA"))

	f.lms.Courses[11] = sharing.Course{ID: 11, CategoryID: 1, Visible: false}
	report := f.service.SyncCourse(context.Background(), 11)
	require.Len(t, report.Files, 1)
	assert.Equal(t, []string{"d@x.com"}, report.Files[0].Revoked)
	assert.Equal(t, readers("a@x.com", "b@x.com"), f.drive.Access("fileA"))
}

func TestService_CapabilityRoles(t *testing.T) {
	ctx := context.Background()
	lmsRoles := &sharing.CapabilityPolicy{WriterCapability: manageActivities}
	f := newFixture(t, lmsRoles)
	lmsRoles.Checker = f.lms
	f.lms.Grant(10, 1, manageActivities)

	f.create(t, 1000, 10)
	assert.Equal(t, map[string]sharing.Role{
		"a@x.com": sharing.RoleWriter,
		"b@x.com": sharing.RoleReader,
	}, f.drive.Access("fileA"))

	delete(f.lms.Capabilities, 10)
	report := f.service.SyncCourse(ctx, 10)
	require.Len(t, report.Files, 1)
	assert.Equal(t, []string{"a@x.com"}, report.Files[0].Updated)
	assert.Equal(t, readers("a@x.com", "b@x.com"), f.drive.Access("fileA"))
}

func TestService_Failures(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, 1000, 10)
	f.create(t, 1100, 11)

	f.drive.Seed("fileA")
	f.drive.Seed("fileB")
	f.drive.Fail["list:fileA"] = errors.New("drive unavailable")

	report, err := f.service.SyncAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	assert.Equal(t, "fileA", report.Files[0].FileID)
	require.Len(t, report.Files[0].Failures, 1)
	assert.Equal(t, "lookup", report.Files[0].Failures[0].Op)
	assert.Empty(t, f.drive.Access("fileA"))

	assert.Equal(t, []string{"d@x.com"}, report.Files[1].Granted)
	assert.Equal(t, 1, report.Failed())
}

func TestService_InvalidEvent(t *testing.T) {
	f := newFixture(t, nil)

	tts := map[string]sharing.Event{
		"unknown kind":              {Kind: "course_viewed", CourseID: 10},
		"category without id":       {Kind: sharing.EventCategoryUpdated},
		"module without id":         {Kind: sharing.EventModuleCreated, CourseID: 10},
		"deletion without course":   {Kind: sharing.EventModuleDeleted, ModuleID: 1000},
		"section without section":   {Kind: sharing.EventSectionUpdated, CourseID: 10},
		"course update without one": {Kind: sharing.EventCourseUpdated},
	}

	for name, e := range tts {
		t.Run(name, func(t *testing.T) {
			report := f.service.OnEvent(context.Background(), e)
			assert.Len(t, report.Errors, 1)
			assert.Empty(t, report.Files)
		})
	}
	assert.Empty(t, f.drive.Calls)
}

func TestParseEventKind(t *testing.T) {
	tts := map[string]struct {
		name string
		kind sharing.EventKind
		code int
	}{
		"kind":       {name: "module_deleted", kind: sharing.EventModuleDeleted},
		"lms name":   {name: `\core\event\course_category_updated`, kind: sharing.EventCategoryUpdated},
		"short name": {name: "course_section_updated", kind: sharing.EventSectionUpdated},
		"unknown":    {name: `\core\event\user_loggedin`, code: 400},
	}

	for name, tt := range tts {
		t.Run(name, func(t *testing.T) {
			kind, err := sharing.ParseEventKind(tt.name)
			if tt.code != 0 {
				coderrors.AssertCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
