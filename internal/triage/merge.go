// internal/triage/merge.go
package triage

import (
	"slices"

	"issue-triage/internal/model"
)

// Merge folds a newly requested change into the accumulator of
// not-yet-delivered changes. Pure: neither argument is mutated.
//
// Scalar facets are last-write-wins: an incoming field that is set (even to
// an explicit null) replaces the staged one. Set-valued facets reconcile:
// an add cancels a staged removal, and removing an item that is still only
// staged for addition drops the staged add instead of recording an upstream
// removal, since the item was never applied upstream. After a merge no item
// appears in both the add and remove sets, so toggling a label repeatedly in
// batch mode pushes only the net effect.
func Merge(existing, incoming model.PendingChange) model.PendingChange {
	merged := existing
	merged.Labels = mergeDelta(existing.Labels, incoming.Labels)
	merged.Assignees = mergeDelta(existing.Assignees, incoming.Assignees)

	if incoming.Priority.Set {
		merged.Priority = incoming.Priority
	}
	if incoming.SnoozedUntil.Set {
		merged.SnoozedUntil = incoming.SnoozedUntil
	}
	if incoming.Dismissed.Set {
		merged.Dismissed = incoming.Dismissed
	}
	if incoming.State.Set {
		merged.State = incoming.State
	}
	return merged
}

func mergeDelta(existing, incoming model.SetDelta) model.SetDelta {
	d := existing.Clone()
	for _, item := range incoming.Add {
		d.Remove = deleteItem(d.Remove, item)
		if !slices.Contains(d.Add, item) {
			d.Add = append(d.Add, item)
		}
	}
	for _, item := range incoming.Remove {
		if slices.Contains(d.Add, item) {
			d.Add = deleteItem(d.Add, item)
			continue
		}
		if !slices.Contains(d.Remove, item) {
			d.Remove = append(d.Remove, item)
		}
	}
	return d
}

func deleteItem(items []string, item string) []string {
	return slices.DeleteFunc(items, func(s string) bool { return s == item })
}
