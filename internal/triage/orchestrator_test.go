// internal/triage/orchestrator_test.go
package triage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issue-triage/internal/model"
)

type recordedWrite struct {
	issueID int64
	change  model.PendingChange
	mode    model.SyncMode
}

// fakeWriter records writes and fails on demand.
type fakeWriter struct {
	writes []recordedWrite
	err    error
}

func (f *fakeWriter) ApplyTriage(_ context.Context, _ int64, issueID int64, change model.PendingChange, mode model.SyncMode) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, recordedWrite{issueID: issueID, change: change, mode: mode})
	return nil
}

func testOrchestrator(t *testing.T) (*Orchestrator, *fakeWriter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	w := &fakeWriter{}
	o := NewOrchestrator(w, 7, logger)
	o.SetViews([]IssueView{
		{Issue: model.Issue{ID: 1, State: model.IssueOpen, Labels: []string{"wontfix"}}},
		{Issue: model.Issue{ID: 2, State: model.IssueOpen}},
	})
	return o, w
}

func TestOrchestrator_OptimisticApply(t *testing.T) {
	o, w := testOrchestrator(t)

	err := o.Apply(context.Background(), Action{
		IssueID: 1,
		Mode:    model.SyncModeBatch,
		Change:  labels([]string{"bug"}, nil),
	})
	require.NoError(t, err)

	view, ok := o.View(1)
	require.True(t, ok)
	assert.Equal(t, []string{"wontfix", "bug"}, view.Issue.Labels)
	require.Len(t, w.writes, 1)
	assert.Equal(t, model.SyncModeBatch, w.writes[0].mode)
}

func TestOrchestrator_RollbackOnWriteFailure(t *testing.T) {
	o, w := testOrchestrator(t)
	w.err = errors.New("origin unavailable")

	err := o.Apply(context.Background(), Action{
		IssueID: 1,
		Mode:    model.SyncModeLive,
		Change: model.PendingChange{
			Priority: model.Some(int16(3)),
			Labels:   model.SetDelta{Add: []string{"bug"}},
		},
	})
	require.Error(t, err)

	// The affected view is restored exactly; the unrelated one is untouched.
	view, _ := o.View(1)
	assert.Equal(t, []string{"wontfix"}, view.Issue.Labels)
	assert.Nil(t, view.Priority)
	other, _ := o.View(2)
	assert.Equal(t, model.IssueOpen, other.Issue.State)
	assert.Empty(t, w.writes)
}

func TestOrchestrator_BatchUndoReplaysInverse(t *testing.T) {
	o, w := testOrchestrator(t)

	require.NoError(t, o.Apply(context.Background(), Action{
		IssueID: 1,
		Mode:    model.SyncModeBatch,
		Change:  labels([]string{"bug"}, nil),
	}))
	require.Equal(t, 1, o.UndoDepth())

	require.NoError(t, o.Undo(context.Background()))

	// The inverse write removed the label and the view is back to baseline.
	require.Len(t, w.writes, 2)
	assert.Equal(t, []string{"bug"}, w.writes[1].change.Labels.Remove)
	view, _ := o.View(1)
	assert.Equal(t, []string{"wontfix"}, view.Issue.Labels)

	// Undoing is not itself undoable.
	assert.Equal(t, 0, o.UndoDepth())
	assert.Error(t, o.Undo(context.Background()))
}

func TestOrchestrator_BatchUndoIsLIFO(t *testing.T) {
	o, w := testOrchestrator(t)

	require.NoError(t, o.Apply(context.Background(), Action{
		IssueID: 1, Mode: model.SyncModeBatch, Change: labels([]string{"bug"}, nil),
	}))
	require.NoError(t, o.Apply(context.Background(), Action{
		IssueID: 2, Mode: model.SyncModeBatch, Change: model.PendingChange{State: model.Some(model.IssueClosed)},
	}))

	require.NoError(t, o.Undo(context.Background()))

	// Most recent first: the state change on issue 2 is reverted.
	last := w.writes[len(w.writes)-1]
	assert.Equal(t, int64(2), last.issueID)
	require.NotNil(t, last.change.State.Value)
	assert.Equal(t, model.IssueOpen, *last.change.State.Value)
	assert.Equal(t, 1, o.UndoDepth())
}

func TestOrchestrator_LiveUndoWindow(t *testing.T) {
	t.Run("inverse issued inside the window", func(t *testing.T) {
		o, w := testOrchestrator(t)
		now := time.Now()
		o.now = func() time.Time { return now }

		require.NoError(t, o.Apply(context.Background(), Action{
			IssueID: 1, Mode: model.SyncModeLive, Change: labels([]string{"bug"}, nil),
		}))

		now = now.Add(3 * time.Second)
		require.NoError(t, o.Undo(context.Background()))
		require.Len(t, w.writes, 2)
		assert.Equal(t, []string{"bug"}, w.writes[1].change.Labels.Remove)
	})

	t.Run("expired window refuses the undo", func(t *testing.T) {
		o, w := testOrchestrator(t)
		now := time.Now()
		o.now = func() time.Time { return now }

		require.NoError(t, o.Apply(context.Background(), Action{
			IssueID: 1, Mode: model.SyncModeLive, Change: labels([]string{"bug"}, nil),
		}))

		now = now.Add(6 * time.Second)
		assert.Error(t, o.Undo(context.Background()))
		assert.Len(t, w.writes, 1)
	})
}

func TestOrchestrator_RefreshCancelledByAction(t *testing.T) {
	o, _ := testOrchestrator(t)

	refreshCtx := o.BeginRefresh(context.Background())
	require.NoError(t, refreshCtx.Err())

	require.NoError(t, o.Apply(context.Background(), Action{
		IssueID: 1, Mode: model.SyncModeBatch, Change: labels([]string{"bug"}, nil),
	}))

	assert.ErrorIs(t, refreshCtx.Err(), context.Canceled)
}

func TestOrchestrator_UnknownIssue(t *testing.T) {
	o, w := testOrchestrator(t)

	err := o.Apply(context.Background(), Action{IssueID: 99, Mode: model.SyncModeLive})
	assert.Error(t, err)
	assert.Empty(t, w.writes)
}
