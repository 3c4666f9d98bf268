package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fsm/meridian/internal/authz"
	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
	"github.com/meridian-fsm/meridian/internal/shared"
)

type mockRepo struct {
	insertErr error
	inserted  []Entry
	queryErr  error
	entries   []Entry
	total     int
	lastLimit int
}

func (m *mockRepo) Insert(_ context.Context, e Entry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, e)
	return nil
}

func (m *mockRepo) Query(_ context.Context, _ Filter, _, limit int) ([]Entry, int, error) {
	m.lastLimit = limit
	if m.queryErr != nil {
		return nil, 0, m.queryErr
	}
	return m.entries, m.total, nil
}

type mockDispatcher struct {
	err        error
	dispatched []Entry
}

func (m *mockDispatcher) Dispatch(_ context.Context, e Entry) error {
	if m.err != nil {
		return m.err
	}
	m.dispatched = append(m.dispatched, e)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordNeverReturnsOnStoreFailure(t *testing.T) {
	repo := &mockRepo{insertErr: errors.New("connection refused")}
	svc := NewService(repo, nil, testLogger())

	// Must not panic; failure degrades to a log line.
	svc.Record(context.Background(), Entry{
		CompanyID: 7,
		Action:    "order.approve",
		Resource:  "order",
	})
	assert.Empty(t, repo.inserted)
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil, testLogger())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	svc.Record(context.Background(), Entry{CompanyID: 7, Action: "user.create", Resource: "user"})

	require.Len(t, repo.inserted, 1)
	assert.NotEmpty(t, repo.inserted[0].ID)
	assert.Equal(t, fixed, repo.inserted[0].CreatedAt)
}

func TestRecordSkipsIncompleteEntry(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil, testLogger())

	svc.Record(context.Background(), Entry{CompanyID: 7, Action: "user.create"})

	assert.Empty(t, repo.inserted)
}

func TestRecordPrefersDispatcher(t *testing.T) {
	repo := &mockRepo{}
	dispatcher := &mockDispatcher{}
	svc := NewService(repo, dispatcher, testLogger())

	svc.Record(context.Background(), Entry{CompanyID: 7, Action: "task.assign", Resource: "task"})

	assert.Len(t, dispatcher.dispatched, 1)
	assert.Empty(t, repo.inserted, "direct insert should be skipped when dispatch succeeds")
}

func TestRecordFallsBackToDirectWrite(t *testing.T) {
	repo := &mockRepo{}
	dispatcher := &mockDispatcher{err: errors.New("broker down")}
	svc := NewService(repo, dispatcher, testLogger())

	svc.Record(context.Background(), Entry{CompanyID: 7, Action: "task.assign", Resource: "task"})

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "task.assign", repo.inserted[0].Action)
}

func TestQueryRequiresCompany(t *testing.T) {
	svc := NewService(&mockRepo{}, nil, testLogger())

	_, _, err := svc.Query(context.Background(), Filter{}, 1, 20)

	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestQueryClampsPageSize(t *testing.T) {
	repo := &mockRepo{total: 3}
	svc := NewService(repo, nil, testLogger())

	_, pagination, err := svc.Query(context.Background(), Filter{CompanyID: 7}, 0, 5000)

	require.NoError(t, err)
	assert.Equal(t, 100, repo.lastLimit)
	assert.Equal(t, shared.NewPagination(1, 100, 3), pagination)
}

func TestDecisionRecorderMapsDecision(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil, testLogger())
	recorder := DecisionRecorder{Service: svc}

	recorder.RecordDecision(context.Background(), authz.Decision{
		Actor:    shared.Identity{UserID: 42, CompanyID: 7, UserName: "Dana", RoleHint: "supervisor"},
		Action:   permission.TaskAssign,
		Resource: "task",
		Allowed:  false,
		Reason:   "missing_permission",
	})

	require.Len(t, repo.inserted, 1)
	e := repo.inserted[0]
	require.NotNil(t, e.UserID)
	assert.Equal(t, int64(42), *e.UserID)
	assert.Equal(t, int64(7), e.CompanyID)
	assert.Equal(t, "Dana", e.UserName)
	assert.Equal(t, "supervisor", e.UserRole)
	assert.Equal(t, "task.assign", e.Action)
	assert.Equal(t, "task", e.Resource)
	assert.Equal(t, false, e.Details["allowed"])
	assert.Equal(t, "missing_permission", e.Details["reason"])
}

func TestDecisionRecorderDefaultsResource(t *testing.T) {
	repo := &mockRepo{}
	recorder := DecisionRecorder{Service: NewService(repo, nil, testLogger())}

	recorder.RecordDecision(context.Background(), authz.Decision{
		Actor:   shared.Identity{UserID: 42, CompanyID: 7},
		Action:  permission.UserView,
		Allowed: true,
	})

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "authorization", repo.inserted[0].Resource)
}
