// Package conflict detects cross-application contradictions in a
// projected assignment set before any remote mutation happens.
package conflict

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/models"
)

// GroupLookup resolves group metadata by id. Only membership counts and
// display names are consulted; a missing group is never a conflict by
// itself.
type GroupLookup interface {
	Lookup(id string) (models.TargetGroup, bool)
}

// Entry is one assignment of the projected edit state: a current
// assignment that survived deletion (with any pending intent update
// applied), or a pending assignment expanded per application.
type Entry struct {
	AppID    string
	AppName  string
	Intent   models.Intent
	Target   models.Target
	Existing bool
}

type groupKey struct {
	groupID string
	kind    models.TargetKind
}

// Detect flags semantically conflicting combinations in the projected
// state. The result is deterministic: identical input yields identical,
// identically-ordered output.
func Detect(entries []Entry, groups GroupLookup) []models.Conflict {
	byGroup := lo.GroupBy(entries, func(e Entry) groupKey {
		return groupKey{groupID: e.Target.GroupID, kind: e.Target.Kind}
	})

	var conflicts []models.Conflict
	for key, members := range byGroup {
		groupName := members[0].Target.DisplayName()

		if c, ok := intentConflict(key, groupName, members); ok {
			conflicts = append(conflicts, c)
		}

		if c, ok := emptyGroupConflict(key, groupName, members, groups); ok {
			conflicts = append(conflicts, c)
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].GroupID != conflicts[j].GroupID {
			return conflicts[i].GroupID < conflicts[j].GroupID
		}
		return conflicts[i].Type < conflicts[j].Type
	})
	return conflicts
}

// intentConflict fires when more than one application targets the group
// and the intents in play contain the required/uninstall pairing: a
// device receiving both signals is a guaranteed failure on one side.
func intentConflict(key groupKey, groupName string, members []Entry) (models.Conflict, bool) {
	apps := lo.Uniq(lo.Map(members, func(e Entry, _ int) string { return e.AppID }))
	if len(apps) < 2 {
		return models.Conflict{}, false
	}

	requiredBy := lo.Filter(members, func(e Entry, _ int) bool { return e.Intent == models.IntentRequired })
	uninstallBy := lo.Filter(members, func(e Entry, _ int) bool { return e.Intent == models.IntentUninstall })
	if len(requiredBy) == 0 || len(uninstallBy) == 0 {
		return models.Conflict{}, false
	}

	crossApp := lo.SomeBy(requiredBy, func(r Entry) bool {
		return lo.SomeBy(uninstallBy, func(u Entry) bool { return u.AppID != r.AppID })
	})
	if !crossApp {
		return models.Conflict{}, false
	}

	return models.Conflict{
		GroupID:   key.groupID,
		GroupName: groupName,
		Type:      models.ConflictIntents,
		Severity:  models.SeverityError,
		Members:   conflictMembers(append(requiredBy, uninstallBy...)),
		Resolution: fmt.Sprintf("group %q is assigned with both required and uninstall intent; align the intents or remove one assignment",
			groupName),
	}, true
}

// emptyGroupConflict warns when a regular group has no members: the
// assignment is a no-op until the group gains members. Built-in scopes
// are never empty in this sense.
func emptyGroupConflict(key groupKey, groupName string, members []Entry, groups GroupLookup) (models.Conflict, bool) {
	if key.kind != models.TargetKindGroup || groups == nil {
		return models.Conflict{}, false
	}

	group, ok := groups.Lookup(key.groupID)
	if !ok || group.MemberCount > 0 {
		return models.Conflict{}, false
	}

	return models.Conflict{
		GroupID:   key.groupID,
		GroupName: groupName,
		Type:      models.ConflictEmptyGroup,
		Severity:  models.SeverityWarning,
		Members:   conflictMembers(members),
		Resolution: fmt.Sprintf("group %q has no members; the assignment takes no effect until the group is populated",
			groupName),
	}, true
}

func conflictMembers(entries []Entry) []models.ConflictMember {
	members := lo.Map(entries, func(e Entry, _ int) models.ConflictMember {
		return models.ConflictMember{
			ApplicationName: e.AppName,
			Intent:          e.Intent,
			Existing:        e.Existing,
		}
	})

	sort.Slice(members, func(i, j int) bool {
		if members[i].ApplicationName != members[j].ApplicationName {
			return members[i].ApplicationName < members[j].ApplicationName
		}
		return members[i].Intent < members[j].Intent
	})
	return lo.Uniq(members)
}
