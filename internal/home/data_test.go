package home

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/approvalkit/slack-workflow-engine/internal/models"
	"github.com/approvalkit/slack-workflow-engine/internal/repository"
	"github.com/approvalkit/slack-workflow-engine/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestData(t *testing.T) (*Data, *repository.RequestRepository) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.Run("../../migrations"))

	repo := repository.NewRequestRepository(db.DB, logger)
	return NewData(repo, logger), repo
}

func seedHomeRequests(t *testing.T, repo *repository.RequestRepository, count int, createdBy, status string) {
	t.Helper()
	for i := 0; i < count; i++ {
		request := &models.Request{
			Type:        "expense",
			CreatedBy:   createdBy,
			PayloadJSON: `{"amount":50}`,
			Status:      status,
			RequestKey:  fmt.Sprintf("%s-%s-%d", createdBy, status, i),
			Version:     1,
		}
		require.NoError(t, repo.Create(context.Background(), nil, request))
	}
}

func TestData_RecentRequests_Pagination(t *testing.T) {
	data, repo := newTestData(t)
	seedHomeRequests(t, repo, 3, "U1", "PENDING_L1")

	page, err := data.RecentRequests(context.Background(), "U1", Filters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.True(t, page.HasMore)
	require.False(t, page.HasPrevious)

	page, err = data.RecentRequests(context.Background(), "U1", Filters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.False(t, page.HasMore)
	require.True(t, page.HasPrevious)
}

func TestData_PendingApprovals_DefaultsToPending(t *testing.T) {
	data, repo := newTestData(t)
	seedHomeRequests(t, repo, 2, "U1", "PENDING_L1")
	seedHomeRequests(t, repo, 1, "U1", "PENDING_L2")
	seedHomeRequests(t, repo, 2, "U1", "APPROVED")
	seedHomeRequests(t, repo, 1, "U2", "PENDING_L1")

	// The approver sees other users' pending requests at any level, not their
	// own and not decided ones.
	page, err := data.PendingApprovals(context.Background(), "U2", Filters{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	for _, item := range page.Items {
		require.NotEqual(t, "U2", item.Request.CreatedBy)
		require.Contains(t, item.Request.Status, "PENDING")
	}
}
