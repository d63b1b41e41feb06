// Package session holds the working copy of an assignment edit: the
// fetched baseline, the pending mutations against it, and the derived
// effective values and conflicts.
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/conflict"
	"github.com/mdmkit/assignsync/models"
)

// Session owns the edit state for a set of applications. The fetched
// assignments are a read-only baseline; edits accumulate in four
// mutation collections and are only applied remotely by executing a
// plan built from a snapshot of this state.
//
// A session has a single logical owner: it is not safe for concurrent
// mutation.
type Session struct {
	apps   []models.Application
	groups conflict.GroupLookup

	assignments map[models.AssignmentKey]models.Assignment

	deletions map[models.AssignmentKey]struct{}
	updates   map[models.AssignmentKey]models.Intent
	overrides FilterOverrides
	pending   []models.PendingAssignment

	conflicts []models.Conflict
	onChange  []func()
}

// New creates a session over the given applications and their fetched
// assignment lists. The group lookup is dependency-injected; it is only
// consulted for conflict detection.
func New(apps []models.Application, groups conflict.GroupLookup) *Session {
	s := &Session{
		apps:        apps,
		groups:      groups,
		assignments: map[models.AssignmentKey]models.Assignment{},
		deletions:   map[models.AssignmentKey]struct{}{},
		updates:     map[models.AssignmentKey]models.Intent{},
		overrides:   FilterOverrides{},
	}

	for _, app := range apps {
		for _, a := range app.Assignments {
			a.AppID = app.ID
			s.assignments[a.Key()] = a
		}
	}

	s.recompute()
	return s
}

// OnChange registers a callback invoked synchronously after every
// effective mutation, once the conflict list has been recomputed.
func (s *Session) OnChange(fn func()) {
	s.onChange = append(s.onChange, fn)
}

func (s *Session) Applications() []models.Application {
	return s.apps
}

func (s *Session) Deleted(key models.AssignmentKey) bool {
	_, ok := s.deletions[key]
	return ok
}

// ToggleDeletion marks the assignment for deletion, or unmarks it if it
// already is. Marking removes any pending intent update or filter
// override for the same key: deletion supersedes edits.
func (s *Session) ToggleDeletion(a models.Assignment) {
	key := a.Key()
	if s.Deleted(key) {
		delete(s.deletions, key)
	} else {
		s.deletions[key] = struct{}{}
		delete(s.updates, key)
		s.overrides.Clear(key)
	}
	s.recompute()
}

// MarkAllForDeletion marks every baseline assignment for deletion.
func (s *Session) MarkAllForDeletion() {
	for key := range s.assignments {
		s.deletions[key] = struct{}{}
		delete(s.updates, key)
		s.overrides.Clear(key)
	}
	s.recompute()
}

// UpdateIntent records a new intent for the assignment. Setting the
// original intent back removes the pending entry; assignments marked
// for deletion are skipped.
func (s *Session) UpdateIntent(a models.Assignment, newIntent models.Intent) {
	key := a.Key()
	if s.Deleted(key) {
		return
	}

	if newIntent == a.Intent {
		if _, ok := s.updates[key]; !ok {
			return
		}
		delete(s.updates, key)
	} else {
		if existing, ok := s.updates[key]; ok && existing == newIntent {
			return
		}
		s.updates[key] = newIntent
	}
	s.recompute()
}

// UpdateFilter records a filter override for the assignment; see
// FilterOverrides.Set for the no-op suppression rule.
func (s *Session) UpdateFilter(a models.Assignment, filter models.AssignmentFilter) {
	key := a.Key()
	if s.Deleted(key) {
		return
	}

	if s.overrides.Set(key, a.Filter, filter) {
		s.recompute()
	}
}

// BulkUpdateIntent applies UpdateIntent to each selected assignment,
// skipping deleted ones.
func (s *Session) BulkUpdateIntent(keys []models.AssignmentKey, intent models.Intent) {
	for _, key := range keys {
		a, ok := s.assignments[key]
		if !ok || s.Deleted(key) {
			continue
		}
		s.applyIntent(a, intent)
	}
	s.recompute()
}

// ChangeAllIntents applies the intent to every non-deleted assignment.
func (s *Session) ChangeAllIntents(intent models.Intent) {
	for key, a := range s.assignments {
		if s.Deleted(key) {
			continue
		}
		s.applyIntent(a, intent)
	}
	s.recompute()
}

func (s *Session) applyIntent(a models.Assignment, intent models.Intent) {
	if intent == a.Intent {
		delete(s.updates, a.Key())
	} else {
		s.updates[a.Key()] = intent
	}
}

// AddPendingAssignments appends one pending assignment per group,
// skipping groups that already have an active (non-deleted) baseline
// assignment or an existing pending entry. It returns how many were
// added.
func (s *Session) AddPendingAssignments(groups []models.TargetGroup, intent models.Intent) int {
	var added int
	for _, group := range groups {
		if s.targeted(group.Target()) {
			continue
		}

		s.pending = append(s.pending, models.PendingAssignment{
			LocalID: uuid.NewString(),
			Group:   group,
			Intent:  intent,
		})
		added++
	}

	if added > 0 {
		s.recompute()
	}
	return added
}

// AddCopiedAssignments appends pending assignments copied from another
// application's assignments, with the same de-duplication rule. The
// source's intent is carried over when copyIntent is set (else
// fallback applies); the source's filter is always carried when
// present.
func (s *Session) AddCopiedAssignments(source []models.Assignment, copyIntent bool, fallback models.Intent) int {
	var added int
	for _, src := range source {
		if s.targeted(src.Target) {
			continue
		}

		intent := fallback
		if copyIntent {
			intent = src.Intent
		}

		group := models.TargetGroup{
			ID:          src.Target.GroupID,
			DisplayName: src.Target.GroupName,
			Kind:        src.Target.Kind,
		}
		if src.Target.Kind.BuiltIn() {
			group.ID = string(src.Target.Kind)
			group.DisplayName = src.Target.DisplayName()
		}

		s.pending = append(s.pending, models.PendingAssignment{
			LocalID:    uuid.NewString(),
			Group:      group,
			Intent:     intent,
			Filter:     src.Filter.Normalized(),
			CopiedFrom: src.ID,
		})
		added++
	}

	if added > 0 {
		s.recompute()
	}
	return added
}

// targeted reports whether any active baseline assignment or pending
// entry already targets the given target.
func (s *Session) targeted(target models.Target) bool {
	for key, a := range s.assignments {
		if s.Deleted(key) {
			continue
		}
		if a.Target.Kind == target.Kind && a.Target.GroupID == target.GroupID {
			return true
		}
	}

	return lo.SomeBy(s.pending, func(p models.PendingAssignment) bool {
		t := p.Group.Target()
		return t.Kind == target.Kind && t.GroupID == target.GroupID
	})
}

// EffectiveIntent is the assignment's intent with any pending update
// applied.
func (s *Session) EffectiveIntent(a models.Assignment) models.Intent {
	if intent, ok := s.updates[a.Key()]; ok {
		return intent
	}
	return a.Intent
}

// EffectiveFilter is the assignment's filter with any override applied.
func (s *Session) EffectiveFilter(a models.Assignment) models.AssignmentFilter {
	return s.overrides.Effective(a.Key(), a.Filter)
}

// HasChanges reports whether any mutation collection is non-empty.
func (s *Session) HasChanges() bool {
	return len(s.deletions) > 0 || len(s.updates) > 0 || len(s.overrides) > 0 || len(s.pending) > 0
}

// Conflicts returns the conflict list recomputed by the last mutation.
func (s *Session) Conflicts() []models.Conflict {
	return s.conflicts
}

// ConfirmationMessage summarizes the pending changes for a commit
// prompt.
func (s *Session) ConfirmationMessage() string {
	if !s.HasChanges() {
		return "No changes to save."
	}

	var parts []string
	if n := len(s.deletions); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deletion(s)", n))
	}
	if n := len(s.updates); n > 0 {
		parts = append(parts, fmt.Sprintf("%d intent change(s)", n))
	}
	if n := len(s.overrides); n > 0 {
		parts = append(parts, fmt.Sprintf("%d filter change(s)", n))
	}
	if n := len(s.pending) * len(s.apps); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new assignment(s)", n))
	}
	return fmt.Sprintf("Save %s?", strings.Join(parts, ", "))
}

// Deletions returns the keys marked for deletion in a stable order.
func (s *Session) Deletions() []models.AssignmentKey {
	keys := lo.Keys(s.deletions)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Updates returns a copy of the pending intent updates.
func (s *Session) Updates() map[models.AssignmentKey]models.Intent {
	return lo.Assign(map[models.AssignmentKey]models.Intent{}, s.updates)
}

// Overrides returns a copy of the pending filter overrides.
func (s *Session) Overrides() FilterOverrides {
	copied := FilterOverrides{}
	copied.Merge(s.overrides)
	return copied
}

// Pending returns a copy of the pending assignment list.
func (s *Session) Pending() []models.PendingAssignment {
	return append([]models.PendingAssignment(nil), s.pending...)
}

// Assignment returns the baseline assignment for the key.
func (s *Session) Assignment(key models.AssignmentKey) (models.Assignment, bool) {
	a, ok := s.assignments[key]
	return a, ok
}

// projected is the conflict detector's input: baseline minus deletions
// with updates applied, plus pending assignments expanded per
// application.
func (s *Session) projected() []conflict.Entry {
	var entries []conflict.Entry

	for _, app := range s.apps {
		for _, a := range app.Assignments {
			a.AppID = app.ID
			if s.Deleted(a.Key()) {
				continue
			}
			entries = append(entries, conflict.Entry{
				AppID:    app.ID,
				AppName:  app.DisplayName,
				Intent:   s.EffectiveIntent(a),
				Target:   a.Target,
				Existing: true,
			})
		}

		for _, p := range s.pending {
			entries = append(entries, conflict.Entry{
				AppID:   app.ID,
				AppName: app.DisplayName,
				Intent:  p.Intent,
				Target:  p.Group.Target(),
			})
		}
	}

	return entries
}

func (s *Session) recompute() {
	s.conflicts = conflict.Detect(s.projected(), s.groups)
	for _, fn := range s.onChange {
		fn()
	}
}
