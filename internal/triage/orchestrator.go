// internal/triage/orchestrator.go
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"issue-triage/internal/model"
)

// liveUndoWindow bounds how long a live-mode action stays undoable.
const liveUndoWindow = 5 * time.Second

// Writer is the server-side write path the orchestrator drives. Satisfied by
// engine.Engine.
type Writer interface {
	ApplyTriage(ctx context.Context, userID, issueID int64, change model.PendingChange, mode model.SyncMode) error
}

// IssueView is the cached, display-facing shape of one issue with the user's
// local overlay folded in. The orchestrator mutates it optimistically.
type IssueView struct {
	Issue        model.Issue
	Priority     *int16
	SnoozedUntil *time.Time
	Dismissed    bool
}

// Action is one user-initiated triage change against one issue.
type Action struct {
	IssueID int64
	Mode    model.SyncMode
	Change  model.PendingChange
}

type undoEntry struct {
	issueID int64
	mode    model.SyncMode
	inverse model.PendingChange
}

// Orchestrator runs each triage action through
// requested -> applied-optimistically -> confirmed | rolled-back.
//
// The cached view is updated before the write so the UI reflects the change
// with no perceptible latency; on write failure exactly the snapshotted keys
// are restored. Batch-mode actions land on a LIFO undo stack; a live-mode
// action arms a 5-second undo slot holding the exact inverse payload.
//
// Not safe for concurrent use: the UI event loop serializes actions, one in
// flight at a time.
type Orchestrator struct {
	writer Writer
	userID int64
	logger *slog.Logger
	now    func() time.Time

	views map[int64]IssueView

	undoStack      []undoEntry
	liveUndo       *undoEntry
	liveUndoExpiry time.Time

	cancelRefresh context.CancelFunc
}

// NewOrchestrator creates an orchestrator for one user's issue view.
func NewOrchestrator(writer Writer, userID int64, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		writer: writer,
		userID: userID,
		logger: logger,
		now:    time.Now,
		views:  make(map[int64]IssueView),
	}
}

// SetViews replaces the cached issue views, typically after a refresh.
func (o *Orchestrator) SetViews(views []IssueView) {
	o.views = make(map[int64]IssueView, len(views))
	for _, v := range views {
		o.views[v.Issue.ID] = v
	}
}

// View returns the cached view for one issue.
func (o *Orchestrator) View(issueID int64) (IssueView, bool) {
	v, ok := o.views[issueID]
	return v, ok
}

// BeginRefresh derives a context for an issue-list refresh and remembers its
// cancel handle, so a triage action can stop a stale refetch from clobbering
// a just-applied optimistic view. Cancellation is advisory and only ever
// aims at a pending read, never an in-flight write.
func (o *Orchestrator) BeginRefresh(parent context.Context) context.Context {
	o.cancelOutstandingRefresh()
	ctx, cancel := context.WithCancel(parent)
	o.cancelRefresh = cancel
	return ctx
}

func (o *Orchestrator) cancelOutstandingRefresh() {
	if o.cancelRefresh != nil {
		o.cancelRefresh()
		o.cancelRefresh = nil
	}
}

// Apply runs one triage action: optimistic view update, server write, and on
// failure a rollback of exactly the snapshotted view.
func (o *Orchestrator) Apply(ctx context.Context, action Action) error {
	return o.apply(ctx, action, true)
}

func (o *Orchestrator) apply(ctx context.Context, action Action, recordUndo bool) error {
	o.cancelOutstandingRefresh()

	view, ok := o.views[action.IssueID]
	if !ok {
		return fmt.Errorf("issue %d is not in the current view", action.IssueID)
	}

	inverse := inverseChange(view, action.Change)
	snapshot := view

	applyToView(&view, action.Change)
	o.views[action.IssueID] = view

	if err := o.writer.ApplyTriage(ctx, o.userID, action.IssueID, action.Change, action.Mode); err != nil {
		o.views[action.IssueID] = snapshot
		o.logger.Warn("triage write failed, view restored", "issue_id", action.IssueID, "error", err)
		return fmt.Errorf("triage write failed: %w", err)
	}

	if recordUndo {
		entry := undoEntry{issueID: action.IssueID, mode: action.Mode, inverse: inverse}
		if action.Mode == model.SyncModeBatch {
			o.undoStack = append(o.undoStack, entry)
		} else {
			o.liveUndo = &entry
			o.liveUndoExpiry = o.now().Add(liveUndoWindow)
		}
	}
	return nil
}

// Undo reverts the most recent action. In live mode the inverse payload is
// issued as a new write while the 5-second window is open; in batch mode the
// top of the LIFO stack is replayed through the same optimistic path. Undoing
// is itself a normal triage action and is never undoable in turn.
func (o *Orchestrator) Undo(ctx context.Context) error {
	if o.liveUndo != nil {
		entry := *o.liveUndo
		o.liveUndo = nil
		if o.now().After(o.liveUndoExpiry) {
			return fmt.Errorf("undo window expired")
		}
		return o.apply(ctx, Action{IssueID: entry.issueID, Mode: entry.mode, Change: entry.inverse}, false)
	}

	if len(o.undoStack) == 0 {
		return fmt.Errorf("nothing to undo")
	}
	entry := o.undoStack[len(o.undoStack)-1]
	o.undoStack = o.undoStack[:len(o.undoStack)-1]
	return o.apply(ctx, Action{IssueID: entry.issueID, Mode: entry.mode, Change: entry.inverse}, false)
}

// UndoDepth reports how many batch actions are undoable.
func (o *Orchestrator) UndoDepth() int {
	return len(o.undoStack)
}

// inverseChange derives the exact inverse payload from the pre-action view:
// scalars restore their prior values, set deltas swap add and remove.
func inverseChange(view IssueView, change model.PendingChange) model.PendingChange {
	var inv model.PendingChange
	if change.Priority.Set {
		inv.Priority = optionalFrom(view.Priority)
	}
	if change.SnoozedUntil.Set {
		inv.SnoozedUntil = optionalFrom(view.SnoozedUntil)
	}
	if change.Dismissed.Set {
		inv.Dismissed = model.Some(view.Dismissed)
	}
	if change.State.Set {
		inv.State = model.Some(view.Issue.State)
	}
	inv.Labels = model.SetDelta{Add: change.Labels.Remove, Remove: change.Labels.Add}
	inv.Assignees = model.SetDelta{Add: change.Assignees.Remove, Remove: change.Assignees.Add}
	return inv
}

func optionalFrom[T any](prior *T) model.Optional[T] {
	if prior == nil {
		return model.Clear[T]()
	}
	return model.Some(*prior)
}

func applyToView(view *IssueView, change model.PendingChange) {
	if change.Priority.Set {
		view.Priority = copyPtr(change.Priority.Value)
	}
	if change.SnoozedUntil.Set {
		view.SnoozedUntil = copyPtr(change.SnoozedUntil.Value)
	}
	if change.Dismissed.Set {
		view.Dismissed = change.Dismissed.Value != nil && *change.Dismissed.Value
	}
	if change.State.Set && change.State.Value != nil {
		view.Issue.State = *change.State.Value
	}
	view.Issue.Labels = model.ApplySetChange(view.Issue.Labels, change.Labels.Add, change.Labels.Remove)
	view.Issue.Assignees = model.ApplySetChange(view.Issue.Assignees, change.Assignees.Add, change.Assignees.Remove)
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
