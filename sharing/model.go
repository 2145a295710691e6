package sharing

import (
	"context"
)

type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleOwner  Role = "owner"
)

// rank orders roles so that the strongest wins when a file is linked from
// several modules.
func (r Role) rank() int {
	switch r {
	case RoleReader:
		return 1
	case RoleWriter:
		return 2
	case RoleOwner:
		return 3
	}
	return 0
}

// PrincipalType is the kind of grantee of a Drive permission.
type PrincipalType string

const (
	PrincipalUser   PrincipalType = "user"
	PrincipalGroup  PrincipalType = "group"
	PrincipalDomain PrincipalType = "domain"
	PrincipalAnyone PrincipalType = "anyone"
)

type Category struct {
	ID      int  `json:"id"`
	Visible bool `json:"visible"`
}

type Course struct {
	ID         int  `json:"id"`
	CategoryID int  `json:"categoryId"`
	Visible    bool `json:"visible"`
}

type Section struct {
	ID       int  `json:"id"`
	CourseID int  `json:"courseId"`
	Number   int  `json:"number"`
	Visible  bool `json:"visible"`

	// Available is the result of the section's own restriction rules that
	// do not depend on the user.
	Available bool `json:"available"`
}

type Module struct {
	ID        int    `json:"id"`
	CourseID  int    `json:"courseId"`
	SectionID int    `json:"sectionId"`
	Type      string `json:"type"`
	Visible   bool   `json:"visible"`
}

// ModuleContext gathers every flag-bearing entity needed to resolve the
// visibility of a module. Section is nil for orphaned modules.
type ModuleContext struct {
	Category Category
	Course   Course
	Section  *Section
	Module   Module
}

// LinkedFile also remembers the course of the module, so that its users stay
// in scope once the module is gone from the LMS.
type LinkedFile struct {
	ModuleID int    `json:"moduleId"`
	FileID   string `json:"fileId"`
	CourseID int    `json:"courseId,omitempty"`
}

type AuthenticatedUser struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

type Permission struct {
	ID    string        `json:"id"`
	Email string        `json:"email"`
	Role  Role          `json:"role"`
	Type  PrincipalType `json:"type"`
}

// CourseRepository is the read side of the LMS store.
type CourseRepository interface {
	CoursesInCategory(ctx context.Context, categoryID int) ([]int, error)
	ModulesInCourse(ctx context.Context, courseID int) ([]Module, error)
	ModulesInSection(ctx context.Context, sectionID int) ([]Module, error)
	Module(ctx context.Context, moduleID int) (Module, error)

	// ModuleContext returns a NotFound error when the module or its course
	// cannot be found.
	ModuleContext(ctx context.Context, moduleID int) (ModuleContext, error)

	// FileReference returns the Drive file id the module points to, or ""
	// when the module does not reference a Drive document.
	FileReference(ctx context.Context, moduleID int) (string, error)
}

// UserRepository lists the users that linked a Google account.
type UserRepository interface {
	EnrolledUsers(ctx context.Context, courseID int) ([]AuthenticatedUser, error)
	Get(ctx context.Context, userID int) (AuthenticatedUser, error)
}

// AccessEvaluator resolves the per-user restriction rules of a module.
type AccessEvaluator interface {
	UserCanSee(ctx context.Context, mc ModuleContext, userID int) (bool, error)
}

// LinkRepository is the registry of module -> Drive file links. Get returns
// an empty LinkedFile and no error when the module has no link.
type LinkRepository interface {
	Get(ctx context.Context, moduleID int) (LinkedFile, error)
	Put(ctx context.Context, link LinkedFile) error
	Delete(ctx context.Context, moduleID int) error

	ModulesForFile(ctx context.Context, fileID string) ([]int, error)
	Files(ctx context.Context) ([]string, error)
}

// PermissionClient is the Drive side.
type PermissionClient interface {
	ListPermissions(ctx context.Context, fileID string) ([]Permission, error)
	InsertPermission(ctx context.Context, fileID, email string, typ PrincipalType, role Role) (string, error)
	UpdatePermission(ctx context.Context, fileID, permissionID string, role Role) error
	RemovePermission(ctx context.Context, fileID, permissionID string) error
}
