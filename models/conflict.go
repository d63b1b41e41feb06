package models

type ConflictType string

const (
	ConflictIntents    ConflictType = "conflictingIntents"
	ConflictEmptyGroup ConflictType = "emptyGroup"
)

type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
)

// ConflictMember is one application's stake in a conflicted group.
type ConflictMember struct {
	ApplicationName string `json:"applicationName"`
	Intent          Intent `json:"intent"`
	Existing        bool   `json:"isExisting"`
}

// Conflict is derived from the projected edit state, never stored.
// Conflicts are advisory: they never block building or executing a
// plan.
type Conflict struct {
	GroupID    string           `json:"groupId"`
	GroupName  string           `json:"groupName"`
	Type       ConflictType     `json:"conflictType"`
	Severity   ConflictSeverity `json:"severity"`
	Members    []ConflictMember `json:"assignments"`
	Resolution string           `json:"resolution"`
}
