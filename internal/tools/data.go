package tools

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/insight-edu/pageflow/internal/apperr"
	"github.com/insight-edu/pageflow/internal/backend"
	"github.com/insight-edu/pageflow/internal/telemetry"
)

// DataSource is the subset of *backend.Client the data tools depend on,
// narrowed to an interface so tests can substitute a fake without spinning
// up an httptest.Server.
type DataSource interface {
	ListClasses(ctx context.Context, teacherID string) ([]backend.ClassInfo, error)
	GetClassDetail(ctx context.Context, teacherID, classID string) (backend.ClassDetail, error)
	ListAssignments(ctx context.Context, teacherID, classID string) ([]backend.AssignmentInfo, error)
	ListSubmissionsForAssignment(ctx context.Context, assignmentID string) ([]backend.SubmissionRecord, error)
	ListGradesForStudent(ctx context.Context, studentID string) ([]backend.GradeRecord, error)
}

// MockSwitch is a hot-toggleable flag backing the `useMockData` config key
// of §6: when set, every data tool returns mocks unconditionally regardless
// of upstream availability.
type MockSwitch struct {
	flag atomic.Bool
}

// NewMockSwitch constructs a MockSwitch with the given initial value.
func NewMockSwitch(initial bool) *MockSwitch {
	s := &MockSwitch{}
	s.flag.Store(initial)
	return s
}

// Set hot-toggles the switch.
func (s *MockSwitch) Set(v bool) { s.flag.Store(v) }

// Enabled reports the current value.
func (s *MockSwitch) Enabled() bool { return s.flag.Load() }

// RegisterDataTools wires the five data tools of §6's outbound contract
// into reg, falling back to deterministic mocks on any ToolError,
// CircuitOpen, or when mockSwitch forces it (§4.2, §9).
func RegisterDataTools(reg *Registry, src DataSource, mockSwitch *MockSwitch, tel telemetry.Bundle) {
	tel = tel.WithDefaults()

	reg.Register(Definition{
		Name:        "list_classes",
		Description: "List the classes taught by the teacher.",
		Params:      []string{"teacherId"},
		Call: func(ctx context.Context, args map[string]any) (Result, error) {
			teacherID, _ := args["teacherId"].(string)
			if mockSwitch.Enabled() {
				tel.Logger.Info(ctx, "tool serving mock data", "tool", "list_classes", "reason", "useMockData")
				return Result{"classes": mockClasses(), "mock": true}, nil
			}
			classes, err := src.ListClasses(ctx, teacherID)
			if err != nil {
				return fallbackResult(ctx, tel, "list_classes", err, Result{"classes": mockClasses(), "mock": true})
			}
			return Result{"classes": classes, "mock": false}, nil
		},
	})

	reg.Register(Definition{
		Name:        "get_class_detail",
		Description: "Get roster size and assignment count for a class.",
		Params:      []string{"teacherId", "classId"},
		Call: func(ctx context.Context, args map[string]any) (Result, error) {
			teacherID, _ := args["teacherId"].(string)
			classID, _ := args["classId"].(string)
			if mockSwitch.Enabled() {
				tel.Logger.Info(ctx, "tool serving mock data", "tool", "get_class_detail", "reason", "useMockData")
				return Result{"classDetail": mockClassDetail(classID), "mock": true}, nil
			}
			detail, err := src.GetClassDetail(ctx, teacherID, classID)
			if err != nil {
				return fallbackResult(ctx, tel, "get_class_detail", err, Result{"classDetail": mockClassDetail(classID), "mock": true})
			}
			return Result{"classDetail": detail, "mock": false}, nil
		},
	})

	reg.Register(Definition{
		Name:        "list_assignments",
		Description: "List assignments for a class.",
		Params:      []string{"teacherId", "classId"},
		Call: func(ctx context.Context, args map[string]any) (Result, error) {
			teacherID, _ := args["teacherId"].(string)
			classID, _ := args["classId"].(string)
			if mockSwitch.Enabled() {
				tel.Logger.Info(ctx, "tool serving mock data", "tool", "list_assignments", "reason", "useMockData")
				return Result{"assignments": mockAssignments(classID), "mock": true}, nil
			}
			assignments, err := src.ListAssignments(ctx, teacherID, classID)
			if err != nil {
				return fallbackResult(ctx, tel, "list_assignments", err, Result{"assignments": mockAssignments(classID), "mock": true})
			}
			return Result{"assignments": assignments, "mock": false}, nil
		},
	})

	reg.Register(Definition{
		Name:        "get_assignment_submissions",
		Description: "Get every student's submission for an assignment.",
		Params:      []string{"assignmentId"},
		Call: func(ctx context.Context, args map[string]any) (Result, error) {
			assignmentID, _ := args["assignmentId"].(string)
			if mockSwitch.Enabled() {
				tel.Logger.Info(ctx, "tool serving mock data", "tool", "get_assignment_submissions", "reason", "useMockData")
				return Result{"submissions": mockSubmissions(assignmentID), "mock": true}, nil
			}
			subs, err := src.ListSubmissionsForAssignment(ctx, assignmentID)
			if err != nil {
				return fallbackResult(ctx, tel, "get_assignment_submissions", err, Result{"submissions": mockSubmissions(assignmentID), "mock": true})
			}
			return Result{"submissions": subs, "mock": false}, nil
		},
	})

	reg.Register(Definition{
		Name:        "get_student_grades",
		Description: "Get a student's grade history across assignments.",
		Params:      []string{"studentId"},
		Call: func(ctx context.Context, args map[string]any) (Result, error) {
			studentID, _ := args["studentId"].(string)
			if mockSwitch.Enabled() {
				tel.Logger.Info(ctx, "tool serving mock data", "tool", "get_student_grades", "reason", "useMockData")
				return Result{"grades": mockGrades(studentID), "mock": true}, nil
			}
			grades, err := src.ListGradesForStudent(ctx, studentID)
			if err != nil {
				return fallbackResult(ctx, tel, "get_student_grades", err, Result{"grades": mockGrades(studentID), "mock": true})
			}
			return Result{"grades": grades, "mock": false}, nil
		},
	})
}

// fallbackResult implements §4.2's "on any BackendError, CircuitOpen, or
// timeout, return a deterministic mock dataset instead of propagating the
// error" — a ToolError, a CircuitOpen, or a bare context.DeadlineExceeded
// from a per-tool timeout degrades to the mock. Any other error, an
// AuthError included, becomes a tool-level error Result. Neither case
// surfaces a Go error to the Executor.
func fallbackResult(ctx context.Context, tel telemetry.Bundle, toolName string, err error, mock Result) (Result, error) {
	if !isFallbackEligible(err) {
		return ErrorResult(err.Error()), nil
	}
	tel.Logger.Warn(ctx, "tool falling back to mock data", "tool", toolName, "reason", err.Error())
	return mock, nil
}

func isFallbackEligible(err error) bool {
	if apperr.Is(err, apperr.KindTool) || apperr.Is(err, apperr.KindCircuitOpen) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
