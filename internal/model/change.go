// internal/model/change.go
package model

import (
	"slices"
	"time"
)

// SetDelta is a staged add/remove pair over a set-valued issue field.
// After a merge an item is never present in both Add and Remove.
type SetDelta struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// IsZero reports whether the delta stages nothing.
func (d SetDelta) IsZero() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// Clone returns a deep copy so merges never alias the accumulator's slices.
func (d SetDelta) Clone() SetDelta {
	return SetDelta{Add: slices.Clone(d.Add), Remove: slices.Clone(d.Remove)}
}

// PendingChange is the per-(issue,user) accumulator of not-yet-delivered
// triage decisions. Priority, SnoozedUntil and Dismissed are local-only;
// Labels, Assignees and State are the provider-facing facets.
type PendingChange struct {
	Priority     Optional[int16]      `json:"priority,omitzero"`
	SnoozedUntil Optional[time.Time]  `json:"snoozedUntil,omitzero"`
	Dismissed    Optional[bool]       `json:"dismissed,omitzero"`
	Labels       SetDelta             `json:"labels,omitzero"`
	Assignees    SetDelta             `json:"assignees,omitzero"`
	State        Optional[IssueState] `json:"state,omitzero"`
}

// IsZero reports whether the change carries nothing at all.
func (p PendingChange) IsZero() bool {
	return !p.Priority.Set && !p.SnoozedUntil.Set && !p.Dismissed.Set &&
		p.Labels.IsZero() && p.Assignees.IsZero() && !p.State.Set
}

// ProviderChange projects the accumulator onto the provider-facing facets,
// dropping every local-only field.
func (p PendingChange) ProviderChange() IssueChange {
	c := IssueChange{
		AddLabels:       slices.Clone(p.Labels.Add),
		RemoveLabels:    slices.Clone(p.Labels.Remove),
		AddAssignees:    slices.Clone(p.Assignees.Add),
		RemoveAssignees: slices.Clone(p.Assignees.Remove),
	}
	if p.State.Set && p.State.Value != nil {
		s := *p.State.Value
		c.State = &s
	}
	return c
}

// IssueChange is the structured change an adapter applies to one origin
// issue. Facets are written independently, best-effort.
type IssueChange struct {
	AddLabels       []string
	RemoveLabels    []string
	AddAssignees    []string
	RemoveAssignees []string
	State           *IssueState
}

// IsZero reports whether there is nothing to send upstream.
func (c IssueChange) IsZero() bool {
	return len(c.AddLabels) == 0 && len(c.RemoveLabels) == 0 &&
		len(c.AddAssignees) == 0 && len(c.RemoveAssignees) == 0 && c.State == nil
}

// ApplySetChange returns base with remove taken out and add folded in,
// preserving order and deduplicating. The reference model for what a staged
// delta does to a set once applied.
func ApplySetChange(base, add, remove []string) []string {
	out := make([]string, 0, len(base)+len(add))
	for _, item := range base {
		if !slices.Contains(remove, item) {
			out = append(out, item)
		}
	}
	for _, item := range add {
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}
