package services_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createReport(t *testing.T, e *env, target string) uuid.UUID {
	t.Helper()
	id, err := e.reports.Create(context.Background(), services.CreateReportInput{
		CommunityID: community,
		ReporterID:  "reporter-1",
		TargetType:  models.TargetTypeContent,
		TargetID:    target,
		Reason:      "offensive",
	})
	require.NoError(t, err)
	return id
}

func TestReportLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id := createReport(t, e, "post-1")
	report, err := e.reports.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusPending, report.Status)

	report, err = e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusReviewing)}, "mod-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusReviewing, report.Status)

	e.clock.Advance(time.Minute)
	report, err = e.reports.Update(ctx, id, services.ReportUpdate{
		Status:     ptr(models.ReportStatusResolved),
		Resolution: ptr("content removed"),
	}, "mod-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, report.Status)
	require.NotNil(t, report.Resolution)
	assert.Equal(t, "content removed", *report.Resolution)
	require.NotNil(t, report.ReviewedBy)
	assert.Equal(t, "mod-1", *report.ReviewedBy)

	_, err = e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusPending)}, "mod-2")
	assert.ErrorIs(t, err, services.ErrReportClosed)

	report, err = e.reports.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, report.Status)

	updates := e.logs(t, models.ActionReportUpdated)
	require.Len(t, updates, 2)
	assert.Equal(t, "reviewing", updates[0].Details["to_status"])
	assert.Equal(t, "resolved", updates[1].Details["to_status"])
}

func TestTerminalReportRejectsEveryMutation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id := createReport(t, e, "post-1")
	_, err := e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusDismissed)}, "mod-1")
	require.NoError(t, err)

	for _, in := range []services.ReportUpdate{
		{Resolution: ptr("changed my mind")},
		{Reason: ptr("different reason")},
		{Status: ptr(models.ReportStatusDismissed)},
		{Status: ptr(models.ReportStatusReviewing)},
	} {
		_, err := e.reports.Update(ctx, id, in, "mod-1")
		assert.ErrorIs(t, err, services.ErrReportClosed)
	}
}

func TestReportInvalidTransition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	id := createReport(t, e, "post-1")
	_, err := e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusReviewing)}, "mod-1")
	require.NoError(t, err)

	_, err = e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusPending)}, "mod-1")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr("archived")}, "mod-1")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = e.reports.Update(ctx, uuid.New(), services.ReportUpdate{Status: ptr(models.ReportStatusResolved)}, "mod-1")
	assert.ErrorIs(t, err, services.ErrReportNotFound)
}

func TestCanTransition(t *testing.T) {
	statuses := []string{
		models.ReportStatusPending, models.ReportStatusReviewing,
		models.ReportStatusResolved, models.ReportStatusDismissed,
	}
	allowed := map[[2]string]bool{
		{"pending", "pending"}:     true,
		{"pending", "reviewing"}:   true,
		{"pending", "resolved"}:    true,
		{"pending", "dismissed"}:   true,
		{"reviewing", "reviewing"}: true,
		{"reviewing", "resolved"}:  true,
		{"reviewing", "dismissed"}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]string{from, to}], services.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCreateReportValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, in := range []services.CreateReportInput{
		{CommunityID: community, ReporterID: "r1", TargetType: "post", TargetID: "p1", Reason: "x"},
		{CommunityID: community, ReporterID: "r1", TargetType: models.TargetTypeUser, TargetID: "u1", Reason: "  "},
		{CommunityID: community, ReporterID: "", TargetType: models.TargetTypeUser, TargetID: "u1", Reason: "x"},
		{CommunityID: community, ReporterID: "r1", TargetType: models.TargetTypeUser, TargetID: "", Reason: "x"},
	} {
		_, err := e.reports.Create(ctx, in)
		assert.ErrorIs(t, err, services.ErrInvalidInput)
	}
}

func TestListReports(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := createReport(t, e, "post-1")
	e.clock.Advance(time.Minute)
	second := createReport(t, e, "post-2")
	e.clock.Advance(time.Minute)
	createReport(t, e, "post-3")

	_, err := e.reports.Update(ctx, first, services.ReportUpdate{Status: ptr(models.ReportStatusDismissed)}, "mod-1")
	require.NoError(t, err)

	all, total, err := e.reports.List(ctx, community, "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 2)
	assert.Equal(t, "post-3", all[0].TargetID)
	assert.Equal(t, second, all[1].ID)

	pending, total, err := e.reports.List(ctx, community, models.ReportStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, pending, 2)

	other, total, err := e.reports.List(ctx, "other", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, other)
}

func TestSubscribeReports(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending := e.reports.Subscribe(community, models.ReportStatusPending)
	defer pending.Cancel()
	all := e.reports.Subscribe(community, "")
	assert.Empty(t, recv(t, pending.C))
	assert.Empty(t, recv(t, all.C))

	id := createReport(t, e, "post-1")
	assert.Len(t, recv(t, pending.C), 1)
	assert.Len(t, recv(t, all.C), 1)

	// Cancelling one stream leaves the other running.
	all.Cancel()
	_, open := <-all.C
	assert.False(t, open)

	_, err := e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusResolved)}, "mod-1")
	require.NoError(t, err)
	assert.Empty(t, recv(t, pending.C))
}

func TestSubscribeReportsDeliversEveryReport(t *testing.T) {
	e := newEnv(t)

	reports := make([]models.Report, 520)
	for i := range reports {
		reports[i] = models.Report{
			CommunityID: community,
			ReporterID:  "reporter-1",
			TargetType:  models.TargetTypeContent,
			TargetID:    fmt.Sprintf("post-%d", i),
			Reason:      "spam",
			Status:      models.ReportStatusPending,
			CreatedAt:   t0.Add(time.Duration(i) * time.Second),
		}
	}
	require.NoError(t, e.db.CreateInBatches(&reports, 100).Error)

	sub := e.reports.Subscribe(community, "")
	defer sub.Cancel()

	snap := recv(t, sub.C)
	require.Len(t, snap, 520)
	assert.Equal(t, "post-519", snap[0].TargetID)
}

// writeStatusBeforeUpdate makes another writer set the report's status
// between Update's read and its conditional write.
func writeStatusBeforeUpdate(t *testing.T, db *gorm.DB, id uuid.UUID, status string) {
	t.Helper()
	var fired atomic.Bool
	err := db.Callback().Update().Before("gorm:update").Register("test:concurrent_status_write", func(tx *gorm.DB) {
		if tx.Statement.Table != "reports" || !fired.CompareAndSwap(false, true) {
			return
		}
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE reports SET status = ? WHERE id = ?", status, id.String())
		if err != nil {
			tx.AddError(err)
		}
	})
	require.NoError(t, err)
}

func TestUpdateAfterConcurrentDismissalIsClosed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := createReport(t, e, "post-1")

	writeStatusBeforeUpdate(t, e.db, id, models.ReportStatusDismissed)

	_, err := e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusReviewing)}, "mod-1")
	assert.ErrorIs(t, err, services.ErrReportClosed)

	report, err := e.reports.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusDismissed, report.Status)
	assert.Nil(t, report.ReviewedBy)
	assert.Empty(t, e.logs(t, models.ActionReportUpdated))
}

func TestUpdateAfterConcurrentReviewConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id := createReport(t, e, "post-1")

	writeStatusBeforeUpdate(t, e.db, id, models.ReportStatusReviewing)

	_, err := e.reports.Update(ctx, id, services.ReportUpdate{Status: ptr(models.ReportStatusResolved)}, "mod-1")
	assert.ErrorIs(t, err, services.ErrReportConflict)

	report, err := e.reports.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusReviewing, report.Status)
	assert.Empty(t, e.logs(t, models.ActionReportUpdated))
}

func TestSubscribeWithoutBusEndsWithError(t *testing.T) {
	e := newEnv(t)
	reports := services.NewReportService(e.db, e.audit)

	sub := reports.Subscribe(community, "")
	defer sub.Cancel()

	assert.Error(t, <-sub.Err)
	_, ok := <-sub.C
	assert.False(t, ok)
}
