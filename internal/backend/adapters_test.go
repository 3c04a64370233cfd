package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-edu/pageflow/internal/apperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Options{
		BaseURL:   srv.URL,
		APIPrefix: "/dify",
		Retry:     RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond},
		Breaker:   BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Second},
	})
	return c, srv
}

func TestListClassesNormalizesIDField(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dify/teacher/t1/classes/me", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"message":"ok","data":[{"id":"c1","name":"Algebra I","grade":"9","subject":"math"}],"timestamp":"now"}`)
	})

	classes, err := c.ListClasses(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "c1", classes[0].ID)
	assert.Equal(t, "Algebra I", classes[0].Name)
}

func TestListClassesPrefersUID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"message":"ok","data":[{"uid":"c-uid","id":"c-legacy","name":"Bio"}],"timestamp":"now"}`)
	})

	classes, err := c.ListClasses(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "c-uid", classes[0].ID)
}

func TestGetClassDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dify/teacher/t1/classes/c1", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"message":"ok","data":{"uid":"c1","name":"Algebra I","studentCount":24,"assignmentCount":5,"studentIds":["s1","s2"]},"timestamp":"now"}`)
	})

	detail, err := c.GetClassDetail(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", detail.ID)
	assert.Equal(t, 24, detail.StudentCount)
	assert.Len(t, detail.StudentIDs, 2)
}

func TestAuthErrorIsNotRetried(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	c.retry.MaxAttempts = 3

	_, err := c.ListClasses(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	// The classified KindAuth error must survive Client.Get unchanged — a
	// generic KindTool rewrap here would make internal/tools treat a real
	// auth failure as mock-fallback-eligible.
	assert.True(t, apperr.Is(err, apperr.KindAuth), "want a KindAuth error, got %v", err)
}

func TestServerErrorOpensCircuitAfterThreshold(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.breaker = NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})

	_, err := c.ListClasses(context.Background(), "t1")
	require.Error(t, err)
	_, err = c.ListClasses(context.Background(), "t1")
	require.Error(t, err)

	_, err = c.ListClasses(context.Background(), "t1")
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, c.breaker.State())
}

func TestListSubmissionsForAssignment(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dify/submissions/assignments/a1", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"message":"ok","data":[{"uid":"sub1","assignmentId":"a1","studentId":"s1","score":88}],"timestamp":"now"}`)
	})

	subs, err := c.ListSubmissionsForAssignment(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 88.0, subs[0].Score)
}

func TestListGradesForStudent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dify/submissions/students/s1", r.URL.Path)
		fmt.Fprint(w, `{"code":200,"message":"ok","data":[{"studentId":"s1","assignmentId":"a1","score":90,"maxScore":100}],"timestamp":"now"}`)
	})

	grades, err := c.ListGradesForStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 90.0, grades[0].Score)
}

func TestRotateTokenAffectsSubsequentRequests(t *testing.T) {
	var seen string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"code":200,"message":"ok","data":[],"timestamp":"now"}`)
	})

	_, err := c.ListClasses(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "", seen)

	c.RotateToken("new-token")
	_, err = c.ListClasses(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer new-token", seen)
}
