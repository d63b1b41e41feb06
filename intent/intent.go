// Package intent decides which assignment intents are semantically
// valid for a given application category and target kind, and can
// substitute an invalid intent with the closest valid one.
package intent

import (
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
)

// compatibility is the fixed intent table, ordered by preference. The
// first entry per combination is the substitution fallback.
var compatibility = map[models.AppCategory]map[models.TargetKind][]models.Intent{
	models.CategoryStore: {
		models.TargetKindGroup: {
			models.IntentRequired, models.IntentAvailable,
			models.IntentUninstall, models.IntentAvailableWithoutEnrollment,
		},
		// "available" needs a user context and is meaningless on a
		// device-only scope.
		models.TargetKindAllDevices: {
			models.IntentRequired, models.IntentUninstall, models.IntentAvailableWithoutEnrollment,
		},
		models.TargetKindAllUsers: {
			models.IntentRequired, models.IntentAvailable,
			models.IntentUninstall, models.IntentAvailableWithoutEnrollment,
		},
	},
	models.CategoryLineOfBusiness: {
		models.TargetKindGroup: {
			models.IntentRequired, models.IntentAvailable, models.IntentUninstall,
		},
		// LOB installers require enrollment, so availableWithoutEnrollment
		// is never offered, and allDevices additionally drops "available".
		models.TargetKindAllDevices: {
			models.IntentRequired, models.IntentUninstall,
		},
		models.TargetKindAllUsers: {
			models.IntentRequired, models.IntentAvailable, models.IntentUninstall,
		},
	},
	models.CategoryWebLink: {
		models.TargetKindGroup: {models.IntentAvailable, models.IntentRequired},
		// Web links only resolve in a user context; there is no intent
		// that can deploy one to a device-only scope.
		models.TargetKindAllDevices: {},
		models.TargetKindAllUsers:   {models.IntentAvailable, models.IntentRequired},
	},
	models.CategoryBuiltIn: {
		models.TargetKindGroup:      {models.IntentRequired, models.IntentUninstall},
		models.TargetKindAllDevices: {models.IntentRequired, models.IntentUninstall},
		models.TargetKindAllUsers:   {models.IntentRequired, models.IntentUninstall},
	},
}

// ValidIntents returns the ordered set of intents valid for the given
// category/target combination. Unknown categories fall back to the
// store-app table, which is the widest.
func ValidIntents(category models.AppCategory, kind models.TargetKind) []models.Intent {
	byKind, ok := compatibility[category]
	if !ok {
		byKind = compatibility[models.CategoryStore]
	}

	if intents, ok := byKind[kind]; ok {
		return intents
	}
	return byKind[models.TargetKindGroup]
}

func IsValid(i models.Intent, category models.AppCategory, kind models.TargetKind) bool {
	return lo.Contains(ValidIntents(category, kind), i)
}

// Suggest returns preferred when it is valid for the combination, else
// the first valid intent. The returned bool reports whether a
// substitution happened so the caller can log it.
func Suggest(category models.AppCategory, kind models.TargetKind, preferred models.Intent) (models.Intent, bool, error) {
	valid := ValidIntents(category, kind)
	if lo.Contains(valid, preferred) {
		return preferred, false, nil
	}

	if len(valid) == 0 {
		return "", false, api.Errorf(api.EINVALID, "no valid intent for category=%s target=%s", category, kind)
	}
	return valid[0], true, nil
}

// Intersect returns the intents valid across every given category for
// the target kind, preserving the order of the first category's table.
// A batch add of one group to applications of different categories can
// only use an intent from this intersection.
func Intersect(categories []models.AppCategory, kind models.TargetKind) []models.Intent {
	if len(categories) == 0 {
		return nil
	}

	result := ValidIntents(categories[0], kind)
	for _, category := range categories[1:] {
		valid := ValidIntents(category, kind)
		result = lo.Filter(result, func(i models.Intent, _ int) bool {
			return lo.Contains(valid, i)
		})
	}
	return result
}

// SuggestForAll is Suggest over the intersection of several categories.
// An empty intersection is an error the caller must surface as a
// creation failure rather than silently dropping the assignment.
func SuggestForAll(categories []models.AppCategory, kind models.TargetKind, preferred models.Intent) (models.Intent, bool, error) {
	valid := Intersect(categories, kind)
	if lo.Contains(valid, preferred) {
		return preferred, false, nil
	}

	if len(valid) == 0 {
		return "", false, api.Errorf(api.EINVALID, "no intent is valid for all %d application categories on target %s", len(categories), kind)
	}
	return valid[0], true, nil
}
