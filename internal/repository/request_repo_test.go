package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.Run("../../migrations"))
	return db
}

func newRequest(workflowType, createdBy, key string) *models.Request {
	return &models.Request{
		Type:        workflowType,
		CreatedBy:   createdBy,
		PayloadJSON: `{"amount":50}`,
		Status:      "PENDING_L1",
		RequestKey:  key,
		Version:     1,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	request := newRequest("expense", "U1", "key-1")
	require.NoError(t, repo.Create(ctx, nil, request))
	require.NotZero(t, request.ID)

	loaded, err := repo.GetByID(ctx, nil, request.ID)
	require.NoError(t, err)
	require.Equal(t, "expense", loaded.Type)
	require.Equal(t, "PENDING_L1", loaded.Status)
	require.Equal(t, 1, loaded.Version)
	require.Empty(t, loaded.DecidedBy)
	require.Nil(t, loaded.DecidedAt)
}

func TestRequestRepository_GetByID_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())

	loaded, err := repo.GetByID(context.Background(), nil, 4242)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRequestRepository_Create_DuplicateKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, newRequest("expense", "U1", "same-key")))

	err := repo.Create(ctx, nil, newRequest("expense", "U1", "same-key"))
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRequestRepository_TransitionStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	historyRepo := NewHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	request := newRequest("expense", "U1", "key-1")
	require.NoError(t, repo.Create(ctx, nil, request))

	require.NoError(t, repo.TransitionStatus(ctx, nil, request, "APPROVED", "U2"))
	require.Equal(t, "APPROVED", request.Status)
	require.Equal(t, 2, request.Version)
	require.Equal(t, "U2", request.DecidedBy)
	require.NotNil(t, request.DecidedAt)

	loaded, err := repo.GetByID(ctx, nil, request.ID)
	require.NoError(t, err)
	require.Equal(t, "APPROVED", loaded.Status)
	require.Equal(t, 2, loaded.Version)

	history, err := historyRepo.ListByRequest(ctx, request.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "PENDING_L1", history[0].PreviousStatus)
	require.Equal(t, "APPROVED", history[0].NewStatus)
	require.Equal(t, "U2", history[0].DecidedBy)
}

func TestRequestRepository_TransitionStatus_StaleVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	request := newRequest("expense", "U1", "key-1")
	require.NoError(t, repo.Create(ctx, nil, request))

	stale := *request
	require.NoError(t, repo.TransitionStatus(ctx, nil, request, "PENDING_L2", "U2"))

	err := repo.TransitionStatus(ctx, nil, &stale, "REJECTED", "U3")
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestRequestRepository_TransitionStatus_Terminal(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	request := newRequest("expense", "U1", "key-1")
	require.NoError(t, repo.Create(ctx, nil, request))
	require.NoError(t, repo.TransitionStatus(ctx, nil, request, "REJECTED", "U2"))

	err := repo.TransitionStatus(ctx, nil, request, "APPROVED", "U3")
	require.ErrorIs(t, err, ErrNotTerminalizable)
}

func seedRequests(t *testing.T, repo *RequestRepository) {
	t.Helper()
	ctx := context.Background()

	rows := []struct {
		workflowType string
		createdBy    string
		status       string
	}{
		{"expense", "U1", "PENDING_L1"},
		{"expense", "U1", "PENDING_L2"},
		{"expense", "U2", "APPROVED"},
		{"timeoff", "U1", "REJECTED"},
		{"timeoff", "U2", "PENDING_L1"},
	}
	for i, row := range rows {
		request := newRequest(row.workflowType, row.createdBy, fmt.Sprintf("key-%d", i))
		request.Status = row.status
		require.NoError(t, repo.Create(ctx, nil, request))
	}
}

func TestRequestRepository_ListByCreator(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	seedRequests(t, repo)

	requests, err := repo.ListByCreator(context.Background(), "U1", ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, requests, 3)
	for _, request := range requests {
		require.Equal(t, "U1", request.CreatedBy)
	}
}

func TestRequestRepository_ListForApprover_ExcludesOwn(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	seedRequests(t, repo)

	requests, err := repo.ListForApprover(context.Background(), "U1", ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	for _, request := range requests {
		require.NotEqual(t, "U1", request.CreatedBy)
	}
}

func TestRequestRepository_List_PendingMatchesAllLevels(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	seedRequests(t, repo)

	requests, err := repo.ListByCreator(context.Background(), "U1", ListFilter{
		Statuses: []string{"PENDING"},
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	for _, request := range requests {
		require.Contains(t, request.Status, "PENDING")
	}
}

func TestRequestRepository_List_TypeFilter(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	seedRequests(t, repo)

	requests, err := repo.ListByCreator(context.Background(), "U1", ListFilter{
		WorkflowTypes: []string{"timeoff"},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "timeoff", requests[0].Type)
}

func TestRequestRepository_List_QueryMatchesID(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	request := newRequest("expense", "U1", "key-q")
	require.NoError(t, repo.Create(ctx, nil, request))

	requests, err := repo.ListByCreator(ctx, "U1", ListFilter{
		Query: fmt.Sprintf("%d", request.ID),
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, request.ID, requests[0].ID)
}

func TestRequestRepository_List_Pagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		request := newRequest("expense", "U1", fmt.Sprintf("page-key-%d", i))
		request.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, nil, request))
	}

	first, err := repo.ListByCreator(ctx, "U1", ListFilter{Limit: 2, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := repo.ListByCreator(ctx, "U1", ListFilter{Limit: 2, Offset: 2, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.NotEqual(t, first[0].ID, second[0].ID)
	require.True(t, first[1].CreatedAt.Before(second[0].CreatedAt))
}
