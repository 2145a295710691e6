package sharing

import (
	"fmt"
	"strings"

	"github.com/bobinette/coursedocs/errors"
)

type EventKind string

const (
	EventCategoryUpdated EventKind = "category_updated"
	EventCourseUpdated   EventKind = "course_updated"
	EventSectionUpdated  EventKind = "section_updated"
	EventModuleCreated   EventKind = "module_created"
	EventModuleUpdated   EventKind = "module_updated"
	EventModuleDeleted   EventKind = "module_deleted"
)

// lmsEventNames maps the LMS event class names to our kinds, once the
// namespace has been stripped.
var lmsEventNames = map[string]EventKind{
	"course_category_updated": EventCategoryUpdated,
	"course_updated":          EventCourseUpdated,
	"course_section_updated":  EventSectionUpdated,
	"course_module_created":   EventModuleCreated,
	"course_module_updated":   EventModuleUpdated,
	"course_module_deleted":   EventModuleDeleted,
}

// ParseEventKind accepts our kinds as well as fully qualified LMS event names
// such as \core\event\course_module_created.
func ParseEventKind(name string) (EventKind, error) {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}

	switch kind := EventKind(name); kind {
	case EventCategoryUpdated, EventCourseUpdated, EventSectionUpdated,
		EventModuleCreated, EventModuleUpdated, EventModuleDeleted:
		return kind, nil
	}

	if kind, ok := lmsEventNames[name]; ok {
		return kind, nil
	}
	return "", errors.New(fmt.Sprintf("unknown event %q", name), errors.BadRequest())
}

type Event struct {
	Kind       EventKind `json:"kind"`
	CourseID   int       `json:"courseId"`
	CategoryID int       `json:"categoryId,omitempty"`
	SectionID  int       `json:"sectionId,omitempty"`
	ModuleID   int       `json:"moduleId,omitempty"`
	ModuleType string    `json:"moduleType,omitempty"`
}

// Normalize resolves LMS event names and checks that the ids required by
// the event kind are set.
func (e Event) Normalize() (Event, error) {
	kind, err := ParseEventKind(string(e.Kind))
	if err != nil {
		return e, err
	}
	e.Kind = kind
	return e, e.validate()
}

func (e Event) validate() error {
	missing := func(field string) error {
		return errors.New(fmt.Sprintf("%s event requires %s", e.Kind, field), errors.BadRequest())
	}

	switch e.Kind {
	case EventCategoryUpdated:
		if e.CategoryID <= 0 {
			return missing("categoryId")
		}
	case EventCourseUpdated:
		if e.CourseID <= 0 {
			return missing("courseId")
		}
	case EventSectionUpdated:
		if e.SectionID <= 0 {
			return missing("sectionId")
		}
	case EventModuleCreated, EventModuleUpdated, EventModuleDeleted:
		if e.ModuleID <= 0 {
			return missing("moduleId")
		}
		if e.Kind == EventModuleDeleted && e.CourseID <= 0 {
			return missing("courseId")
		}
	}
	return nil
}

// EventReport is what OnEvent returns instead of an error.
type EventReport struct {
	PassID string   `json:"passId"`
	Event  Event    `json:"event"`
	Files  []Report `json:"files"`
	Errors []string `json:"errors"`
}

// Failed counts the permission calls and lookups that did not go through.
func (r EventReport) Failed() int {
	n := len(r.Errors)
	for _, f := range r.Files {
		n += len(f.Failures)
	}
	return n
}
