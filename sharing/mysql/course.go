package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobinette/coursedocs/errors"
	"github.com/bobinette/coursedocs/sharing"
)

// Context level of course modules.
const contextModule = 70

const moduleColumns = `
	SELECT cm.id, cm.course AS course_id, cm.section AS section_id, cm.visible, m.name AS type
	FROM {course_modules} cm
	JOIN {modules} m ON m.id = cm.module
`

type moduleRow struct {
	ID        int
	CourseID  int
	SectionID int
	Visible   bool
	Type      string
}

func (r moduleRow) format() sharing.Module {
	return sharing.Module{
		ID:        r.ID,
		CourseID:  r.CourseID,
		SectionID: r.SectionID,
		Type:      r.Type,
		Visible:   r.Visible,
	}
}

type contextRow struct {
	moduleRow

	CategoryID      int
	CategoryVisible bool
	CourseVisible   bool

	// The section columns are null for orphaned modules.
	SectionNumber       *int
	SectionVisible      *bool
	SectionAvailability *string
}

type CourseRepository struct {
	driver *Driver
}

func NewCourseRepository(driver *Driver) *CourseRepository {
	return &CourseRepository{
		driver: driver,
	}
}

// CoursesInCategory lists the courses of the category and of all its
// subcategories. The path of a category is the list of its ancestors, e.g.
// /1/4/9.
func (r *CourseRepository) CoursesInCategory(ctx context.Context, categoryID int) ([]int, error) {
	var rows []struct {
		ID int
	}
	err := r.driver.db.Raw(r.driver.sql(`
		SELECT c.id
		FROM {course} c
		JOIN {course_categories} cc ON cc.id = c.category
		WHERE cc.id = ? OR cc.path LIKE ?
		ORDER BY c.id
	`), categoryID, subcategoryPattern(categoryID)).Scan(&rows).Error
	if err != nil {
		return nil, lookupError(fmt.Sprintf("could not list courses of category %d", categoryID), err)
	}

	ids := make([]int, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

// subcategoryPattern matches the path of every category below categoryID.
func subcategoryPattern(categoryID int) string {
	return fmt.Sprintf("%%/%d/%%", categoryID)
}

func (r *CourseRepository) ModulesInCourse(ctx context.Context, courseID int) ([]sharing.Module, error) {
	return r.modules(
		fmt.Sprintf("could not list modules of course %d", courseID),
		moduleColumns+"WHERE cm.course = ? AND cm.deletioninprogress = 0 ORDER BY cm.id",
		courseID,
	)
}

func (r *CourseRepository) ModulesInSection(ctx context.Context, sectionID int) ([]sharing.Module, error) {
	return r.modules(
		fmt.Sprintf("could not list modules of section %d", sectionID),
		moduleColumns+"WHERE cm.section = ? AND cm.deletioninprogress = 0 ORDER BY cm.id",
		sectionID,
	)
}

func (r *CourseRepository) Module(ctx context.Context, moduleID int) (sharing.Module, error) {
	modules, err := r.modules(
		fmt.Sprintf("could not get module %d", moduleID),
		moduleColumns+"WHERE cm.id = ?",
		moduleID,
	)
	if err != nil {
		return sharing.Module{}, err
	} else if len(modules) == 0 {
		return sharing.Module{}, errors.New(fmt.Sprintf("module %d not found", moduleID), errors.NotFound())
	}
	return modules[0], nil
}

func (r *CourseRepository) modules(msg, query string, args ...interface{}) ([]sharing.Module, error) {
	var rows []moduleRow
	err := r.driver.db.Raw(r.driver.sql(query), args...).Scan(&rows).Error
	if err != nil {
		return nil, lookupError(msg, err)
	}

	modules := make([]sharing.Module, len(rows))
	for i, row := range rows {
		modules[i] = row.format()
	}
	return modules, nil
}

func (r *CourseRepository) ModuleContext(ctx context.Context, moduleID int) (sharing.ModuleContext, error) {
	var rows []contextRow
	err := r.driver.db.Raw(r.driver.sql(`
		SELECT cm.id, cm.course AS course_id, cm.section AS section_id, cm.visible, m.name AS type,
			c.category AS category_id, cc.visible AS category_visible, c.visible AS course_visible,
			cs.section AS section_number, cs.visible AS section_visible, cs.availability AS section_availability
		FROM {course_modules} cm
		JOIN {modules} m ON m.id = cm.module
		JOIN {course} c ON c.id = cm.course
		JOIN {course_categories} cc ON cc.id = c.category
		LEFT JOIN {course_sections} cs ON cs.id = cm.section AND cs.course = cm.course
		WHERE cm.id = ?
	`), moduleID).Scan(&rows).Error
	if err != nil {
		return sharing.ModuleContext{}, lookupError(fmt.Sprintf("could not get context of module %d", moduleID), err)
	} else if len(rows) == 0 {
		return sharing.ModuleContext{}, errors.New(fmt.Sprintf("module %d or its course not found", moduleID), errors.NotFound())
	}

	row := rows[0]
	mc := sharing.ModuleContext{
		Category: sharing.Category{ID: row.CategoryID, Visible: row.CategoryVisible},
		Course:   sharing.Course{ID: row.CourseID, CategoryID: row.CategoryID, Visible: row.CourseVisible},
		Module:   row.format(),
	}

	if row.SectionNumber != nil {
		section := sharing.Section{
			ID:        row.SectionID,
			CourseID:  row.CourseID,
			Number:    *row.SectionNumber,
			Visible:   row.SectionVisible != nil && *row.SectionVisible,
			Available: true,
		}
		if row.SectionAvailability != nil {
			section.Available = available(*row.SectionAvailability, now())
		}
		mc.Section = &section
	}

	return mc, nil
}

func (r *CourseRepository) FileReference(ctx context.Context, moduleID int) (string, error) {
	var references []string
	err := r.driver.db.Raw(r.driver.sql(`
		SELECT DISTINCT fr.reference
		FROM {files_reference} fr
		JOIN {files} f ON f.referencefileid = fr.id
		JOIN {context} ctx ON ctx.id = f.contextid AND ctx.contextlevel = ?
		JOIN {repository_instances} ri ON ri.id = fr.repositoryid
		JOIN {repository} repo ON repo.id = ri.typeid
		WHERE ctx.instanceid = ?
		AND repo.type = 'googledocs'
		AND NOT (f.component = 'user' AND f.filearea = 'draft')
	`), contextModule, moduleID).Pluck("reference", &references).Error
	if err != nil {
		return "", lookupError(fmt.Sprintf("could not get file reference of module %d", moduleID), err)
	}

	for _, ref := range references {
		if id := fileID(ref); id != "" {
			return id, nil
		}
	}
	return "", nil
}

// fileID extracts the Drive file id of a files_reference row. Older
// repositories store the bare id, newer ones a JSON object.
func fileID(reference string) string {
	reference = strings.TrimSpace(reference)
	if !strings.HasPrefix(reference, "{") {
		return reference
	}

	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(reference), &ref); err != nil {
		return ""
	}
	return ref.ID
}

func lookupError(msg string, err error) error {
	return errors.New(msg, errors.WithCause(err), errors.BadGateway())
}
