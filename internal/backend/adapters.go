package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// ClassInfo is the summary record returned by the teacher-class listing
// endpoint.
type ClassInfo struct {
	ID      string `json:"uid"`
	Name    string `json:"name"`
	Grade   string `json:"grade"`
	Subject string `json:"subject"`
}

// ClassDetail extends ClassInfo with roster and assignment counts.
type ClassDetail struct {
	ClassInfo
	StudentCount    int      `json:"studentCount"`
	AssignmentCount int      `json:"assignmentCount"`
	StudentIDs      []string `json:"studentIds"`
}

// AssignmentInfo is one assignment belonging to a class.
type AssignmentInfo struct {
	ID       string `json:"uid"`
	ClassID  string `json:"classId"`
	Title    string `json:"title"`
	DueDate  string `json:"dueDate"`
	MaxScore float64 `json:"maxScore"`
}

// SubmissionRecord is one student's submission for an assignment.
type SubmissionRecord struct {
	ID           string  `json:"uid"`
	AssignmentID string  `json:"assignmentId"`
	StudentID    string  `json:"studentId"`
	SubmittedAt  string  `json:"submittedAt"`
	Score        float64 `json:"score"`
	Status       string  `json:"status"`
}

// GradeRecord is one student's aggregate grade history entry.
type GradeRecord struct {
	StudentID    string  `json:"studentId"`
	AssignmentID string  `json:"assignmentId"`
	Score        float64 `json:"score"`
	MaxScore     float64 `json:"maxScore"`
}

// withID normalizes the upstream id-duality: prefer `uid`, fall back to
// `id`, so adapters never fail on whichever field a given upstream endpoint
// happens to emit.
func withID(raw json.RawMessage) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return raw, nil // not an object (e.g. an array); leave untouched
	}
	if _, hasUID := probe["uid"]; hasUID {
		return raw, nil
	}
	if id, hasID := probe["id"]; hasID {
		probe["uid"] = id
		return json.Marshal(probe)
	}
	return raw, nil
}

// ListClasses calls GET {prefix}/teacher/{teacherId}/classes/me.
func (c *Client) ListClasses(ctx context.Context, teacherID string) ([]ClassInfo, error) {
	path := fmt.Sprintf("/teacher/%s/classes/me", formatTeacherID(teacherID))
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("backend: decoding classes: %w", err)
	}
	out := make([]ClassInfo, 0, len(raws))
	for _, r := range raws {
		normalized, err := withID(r)
		if err != nil {
			return nil, err
		}
		var ci ClassInfo
		if err := json.Unmarshal(normalized, &ci); err != nil {
			return nil, fmt.Errorf("backend: decoding class entry: %w", err)
		}
		out = append(out, ci)
	}
	return out, nil
}

// GetClassDetail calls GET {prefix}/teacher/{teacherId}/classes/{classId}.
func (c *Client) GetClassDetail(ctx context.Context, teacherID, classID string) (ClassDetail, error) {
	path := fmt.Sprintf("/teacher/%s/classes/%s", formatTeacherID(teacherID), formatTeacherID(classID))
	data, err := c.Get(ctx, path)
	if err != nil {
		return ClassDetail{}, err
	}
	normalized, err := withID(data)
	if err != nil {
		return ClassDetail{}, err
	}
	var cd ClassDetail
	if err := json.Unmarshal(normalized, &cd); err != nil {
		return ClassDetail{}, fmt.Errorf("backend: decoding class detail: %w", err)
	}
	return cd, nil
}

// ListAssignments calls GET {prefix}/teacher/{teacherId}/classes/{classId}/assignments.
func (c *Client) ListAssignments(ctx context.Context, teacherID, classID string) ([]AssignmentInfo, error) {
	path := fmt.Sprintf("/teacher/%s/classes/%s/assignments", formatTeacherID(teacherID), formatTeacherID(classID))
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("backend: decoding assignments: %w", err)
	}
	out := make([]AssignmentInfo, 0, len(raws))
	for _, r := range raws {
		normalized, err := withID(r)
		if err != nil {
			return nil, err
		}
		var ai AssignmentInfo
		if err := json.Unmarshal(normalized, &ai); err != nil {
			return nil, fmt.Errorf("backend: decoding assignment entry: %w", err)
		}
		out = append(out, ai)
	}
	return out, nil
}

// ListSubmissionsForAssignment calls GET {prefix}/submissions/assignments/{assignmentId}.
func (c *Client) ListSubmissionsForAssignment(ctx context.Context, assignmentID string) ([]SubmissionRecord, error) {
	path := fmt.Sprintf("/submissions/assignments/%s", formatTeacherID(assignmentID))
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("backend: decoding submissions: %w", err)
	}
	out := make([]SubmissionRecord, 0, len(raws))
	for _, r := range raws {
		normalized, err := withID(r)
		if err != nil {
			return nil, err
		}
		var sr SubmissionRecord
		if err := json.Unmarshal(normalized, &sr); err != nil {
			return nil, fmt.Errorf("backend: decoding submission entry: %w", err)
		}
		out = append(out, sr)
	}
	return out, nil
}

// ListGradesForStudent calls GET {prefix}/submissions/students/{studentId}.
func (c *Client) ListGradesForStudent(ctx context.Context, studentID string) ([]GradeRecord, error) {
	path := fmt.Sprintf("/submissions/students/%s", formatTeacherID(studentID))
	data, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []GradeRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("backend: decoding grades: %w", err)
	}
	return out, nil
}
