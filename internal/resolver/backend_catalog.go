package resolver

import "context"

// BackendClassInfo, BackendAssignmentInfo, and BackendClassDetail mirror the
// fields of internal/backend's ClassInfo/AssignmentInfo/ClassDetail that
// BackendCatalog needs. internal/backend's return types carry extra fields
// (json tags, counts) this package has no use for, so cmd/server converts
// between them when it wires a BackendCatalog over a *backend.Client rather
// than this package importing internal/backend directly — keeping the
// resolver's only dependency on the shape it actually reads, the same
// narrow-interface convention internal/tools.DataSource follows.
type BackendClassInfo struct {
	ID      string
	Name    string
	Grade   string
	Subject string
}

type BackendAssignmentInfo struct {
	ID    string
	Title string
}

type BackendClassDetail struct {
	StudentIDs []string
}

// BackendSource is the subset of a backend client's surface BackendCatalog
// needs, expressed in the mirror types above rather than internal/backend's
// own so this package never imports it directly.
type BackendSource interface {
	ListClasses(ctx context.Context, teacherID string) ([]BackendClassInfo, error)
	ListAssignments(ctx context.Context, teacherID, classID string) ([]BackendAssignmentInfo, error)
	GetClassDetail(ctx context.Context, teacherID, classID string) (BackendClassDetail, error)
}

// BackendCatalog adapts a BackendSource (in practice *backend.Client, via
// the thin wrapper cmd/server constructs) into the Catalog interface the
// Resolver depends on.
type BackendCatalog struct {
	src BackendSource
}

// NewBackendCatalog constructs a BackendCatalog.
func NewBackendCatalog(src BackendSource) *BackendCatalog {
	return &BackendCatalog{src: src}
}

// ClassesForTeacher lists a teacher's classes.
func (c *BackendCatalog) ClassesForTeacher(ctx context.Context, teacherID string) ([]ClassRef, error) {
	classes, err := c.src.ListClasses(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	out := make([]ClassRef, 0, len(classes))
	for _, cl := range classes {
		out = append(out, ClassRef{ID: cl.ID, Name: cl.Name, Grade: cl.Grade, Subject: cl.Subject})
	}
	return out, nil
}

// AssignmentsForClass lists a class's assignments.
func (c *BackendCatalog) AssignmentsForClass(ctx context.Context, teacherID, classID string) ([]NamedRef, error) {
	assignments, err := c.src.ListAssignments(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	out := make([]NamedRef, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, NamedRef{ID: a.ID, Name: a.Title})
	}
	return out, nil
}

// StudentsForClass lists a class's roster. The upstream class-detail
// endpoint exposes only student IDs, not names (§6's open question on the
// submissions endpoint's ID-form mismatch suggests the backend's student
// identity surface is generally thin) — each NamedRef's Name falls back to
// its ID so free-text name matching degrades to ID matching rather than
// silently dropping every student from dependent-entity resolution.
func (c *BackendCatalog) StudentsForClass(ctx context.Context, teacherID, classID string) ([]NamedRef, error) {
	detail, err := c.src.GetClassDetail(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	out := make([]NamedRef, 0, len(detail.StudentIDs))
	for _, id := range detail.StudentIDs {
		out = append(out, NamedRef{ID: id, Name: id})
	}
	return out, nil
}
