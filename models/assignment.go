package models

import (
	"fmt"
	"strings"
)

// Intent is the deployment action an assignment requests.
type Intent string

const (
	IntentRequired                   Intent = "required"
	IntentAvailable                  Intent = "available"
	IntentUninstall                  Intent = "uninstall"
	IntentAvailableWithoutEnrollment Intent = "availableWithoutEnrollment"
)

type FilterMode string

const (
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
)

// TargetKind discriminates between regular group targets and the
// built-in universal scopes that carry no group id on the wire.
type TargetKind string

const (
	TargetKindGroup      TargetKind = "group"
	TargetKindAllDevices TargetKind = "allDevices"
	TargetKindAllUsers   TargetKind = "allUsers"
)

func (k TargetKind) BuiltIn() bool {
	return k == TargetKindAllDevices || k == TargetKindAllUsers
}

// Target is the receiving end of an assignment. GroupID and GroupName
// are only set for TargetKindGroup.
type Target struct {
	Kind      TargetKind `json:"kind"`
	GroupID   string     `json:"groupId,omitempty"`
	GroupName string     `json:"groupName,omitempty"`
}

func (t Target) DisplayName() string {
	switch t.Kind {
	case TargetKindAllDevices:
		return "All devices"
	case TargetKindAllUsers:
		return "All users"
	default:
		if t.GroupName != "" {
			return t.GroupName
		}
		return t.GroupID
	}
}

// AssignmentFilter narrows which devices within a target actually
// receive the assignment. The zero value means "no filter".
type AssignmentFilter struct {
	ID   string     `json:"id,omitempty"`
	Mode FilterMode `json:"mode,omitempty"`
}

func (f AssignmentFilter) IsZero() bool {
	return strings.TrimSpace(f.ID) == ""
}

// Normalized trims the id, clears the mode when no id is present and
// defaults the mode to include when an id is present without one.
// Filter equality is always decided on normalized values.
func (f AssignmentFilter) Normalized() AssignmentFilter {
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		return AssignmentFilter{}
	}
	if f.Mode == "" {
		f.Mode = FilterInclude
	}
	return f
}

// AssignmentKey identifies one assignment per owning application. The
// same group may be assigned independently per application, so the
// assignment id alone is not a key.
type AssignmentKey struct {
	AppID        string
	AssignmentID string
}

func (k AssignmentKey) String() string {
	return fmt.Sprintf("%s/%s", k.AppID, k.AssignmentID)
}

// Assignment is one existing link between an application and a target.
// The ID is assigned by the remote service and is never reused across
// delete/recreate.
type Assignment struct {
	ID     string           `json:"id"`
	AppID  string           `json:"applicationId"`
	Intent Intent           `json:"intent"`
	Target Target           `json:"target"`
	Filter AssignmentFilter `json:"filter,omitempty"`
}

func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{AppID: a.AppID, AssignmentID: a.ID}
}

// PendingAssignment is a desired but not-yet-created assignment. It is
// expanded to one create operation per application in the edit session.
// CopiedFrom records provenance when the settings were copied from
// another application's assignment; it carries no server meaning.
type PendingAssignment struct {
	LocalID    string           `json:"localId"`
	Group      TargetGroup      `json:"group"`
	Intent     Intent           `json:"intent"`
	Filter     AssignmentFilter `json:"filter,omitempty"`
	CopiedFrom string           `json:"copiedFromAssignmentId,omitempty"`
}
