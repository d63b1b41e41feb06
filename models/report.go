package models

import (
	"fmt"
	"strings"
)

// Phase names one leg of a save operation.
type Phase string

const (
	PhaseDelete   Phase = "delete"
	PhaseRecreate Phase = "recreate"
	PhaseCreate   Phase = "create"
)

// OperationFailure attributes one failed remote operation to a specific
// (application, group) pair. WasDeleted marks the critical case: the
// original assignment was removed and the replacement never arrived.
type OperationFailure struct {
	ApplicationName string `json:"applicationName"`
	GroupName       string `json:"groupName"`
	Phase           Phase  `json:"phase"`
	Error           string `json:"error"`
	WasDeleted      bool   `json:"wasDeleted"`
}

func (f OperationFailure) Critical() bool {
	return f.WasDeleted
}

// SaveReport is the aggregate outcome of executing a plan. It is always
// returned, never thrown, so the caller can reconcile local state after
// any save.
type SaveReport struct {
	Completed map[Phase]int      `json:"completed"`
	Failed    map[Phase]int      `json:"failed"`
	Failures  []OperationFailure `json:"failures,omitempty"`
}

func NewSaveReport() *SaveReport {
	return &SaveReport{
		Completed: map[Phase]int{},
		Failed:    map[Phase]int{},
	}
}

func (r *SaveReport) RecordSuccess(phase Phase) {
	r.Completed[phase]++
}

func (r *SaveReport) RecordFailure(f OperationFailure) {
	r.Failed[f.Phase]++
	r.Failures = append(r.Failures, f)
}

func (r *SaveReport) CompletedCount() int {
	var n int
	for _, c := range r.Completed {
		n += c
	}
	return n
}

func (r *SaveReport) FailedCount() int {
	var n int
	for _, c := range r.Failed {
		n += c
	}
	return n
}

func (r *SaveReport) HasFailures() bool {
	return r.FailedCount() > 0
}

// CriticalCount returns how many failures left an assignment missing on
// the remote side until manually repaired.
func (r *SaveReport) CriticalCount() int {
	var n int
	for _, f := range r.Failures {
		if f.Critical() {
			n++
		}
	}
	return n
}

func (r *SaveReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "completed=%d failed=%d", r.CompletedCount(), r.FailedCount())
	if c := r.CriticalCount(); c > 0 {
		fmt.Fprintf(&sb, " critical=%d (check the remote console manually)", c)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&sb, "\n  %s/%s [%s]: %s", f.ApplicationName, f.GroupName, f.Phase, f.Error)
	}
	return sb.String()
}
