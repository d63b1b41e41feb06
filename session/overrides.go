package session

import (
	"github.com/mdmkit/assignsync/models"
)

// FilterOverrides is a sparse map of explicit filter edits, keyed by
// assignment. It exists so the session can distinguish "user cleared
// the filter" from "user never touched it", and so that toggling a
// control back to its original value leaves no pending edit behind.
type FilterOverrides map[models.AssignmentKey]models.AssignmentFilter

// Set stores the normalized filter for key, unless it equals the
// original assignment's normalized filter, in which case any existing
// override is removed. It returns whether the stored state changed so
// callers can skip redundant conflict re-detection.
func (o FilterOverrides) Set(key models.AssignmentKey, original, filter models.AssignmentFilter) bool {
	filter = filter.Normalized()

	if filter == original.Normalized() {
		if _, ok := o[key]; ok {
			delete(o, key)
			return true
		}
		return false
	}

	if existing, ok := o[key]; ok && existing == filter {
		return false
	}
	o[key] = filter
	return true
}

// Effective returns the override for key if present, else the
// normalized original filter.
func (o FilterOverrides) Effective(key models.AssignmentKey, original models.AssignmentFilter) models.AssignmentFilter {
	if override, ok := o[key]; ok {
		return override
	}
	return original.Normalized()
}

func (o FilterOverrides) Clear(key models.AssignmentKey) bool {
	if _, ok := o[key]; !ok {
		return false
	}
	delete(o, key)
	return true
}

// Merge copies other's overrides into o, overwriting on collision.
func (o FilterOverrides) Merge(other FilterOverrides) {
	for key, filter := range other {
		o[key] = filter
	}
}
