package main

import (
	"context"

	"github.com/insight-edu/pageflow/internal/backend"
	"github.com/insight-edu/pageflow/internal/resolver"
)

// backendSource wraps *backend.Client to satisfy resolver.BackendSource,
// converting backend's own return types into resolver's narrower mirrors —
// the conversion shim resolver/backend_catalog.go defers to this package.
type backendSource struct {
	client *backend.Client
}

func (s backendSource) ListClasses(ctx context.Context, teacherID string) ([]resolver.BackendClassInfo, error) {
	classes, err := s.client.ListClasses(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.BackendClassInfo, 0, len(classes))
	for _, c := range classes {
		out = append(out, resolver.BackendClassInfo{ID: c.ID, Name: c.Name, Grade: c.Grade, Subject: c.Subject})
	}
	return out, nil
}

func (s backendSource) ListAssignments(ctx context.Context, teacherID, classID string) ([]resolver.BackendAssignmentInfo, error) {
	assignments, err := s.client.ListAssignments(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.BackendAssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, resolver.BackendAssignmentInfo{ID: a.ID, Title: a.Title})
	}
	return out, nil
}

func (s backendSource) GetClassDetail(ctx context.Context, teacherID, classID string) (resolver.BackendClassDetail, error) {
	detail, err := s.client.GetClassDetail(ctx, teacherID, classID)
	if err != nil {
		return resolver.BackendClassDetail{}, err
	}
	return resolver.BackendClassDetail{StudentIDs: detail.StudentIDs}, nil
}
