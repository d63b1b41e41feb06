package intent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mdmkit/assignsync/api"
	"github.com/mdmkit/assignsync/models"
)

func TestValidIntents(t *testing.T) {
	testdata := []struct {
		category models.AppCategory
		kind     models.TargetKind
		expected []models.Intent
	}{
		{
			category: models.CategoryStore,
			kind:     models.TargetKindGroup,
			expected: []models.Intent{
				models.IntentRequired, models.IntentAvailable,
				models.IntentUninstall, models.IntentAvailableWithoutEnrollment,
			},
		},
		{
			category: models.CategoryLineOfBusiness,
			kind:     models.TargetKindAllDevices,
			expected: []models.Intent{models.IntentRequired, models.IntentUninstall},
		},
		{
			category: models.CategoryWebLink,
			kind:     models.TargetKindAllDevices,
			expected: []models.Intent{},
		},
		{
			category: models.CategoryBuiltIn,
			kind:     models.TargetKindAllUsers,
			expected: []models.Intent{models.IntentRequired, models.IntentUninstall},
		},
		{
			// unknown categories fall back to the widest table
			category: models.AppCategory("unheard-of"),
			kind:     models.TargetKindGroup,
			expected: []models.Intent{
				models.IntentRequired, models.IntentAvailable,
				models.IntentUninstall, models.IntentAvailableWithoutEnrollment,
			},
		},
	}

	for _, test := range testdata {
		require.Equal(t, test.expected, ValidIntents(test.category, test.kind),
			"category=%s kind=%s", test.category, test.kind)
	}
}

func TestIsValid(t *testing.T) {
	require.True(t, IsValid(models.IntentAvailable, models.CategoryStore, models.TargetKindGroup))
	require.False(t, IsValid(models.IntentAvailable, models.CategoryStore, models.TargetKindAllDevices))
	require.False(t, IsValid(models.IntentAvailableWithoutEnrollment, models.CategoryLineOfBusiness, models.TargetKindGroup))
}

func TestSuggest(t *testing.T) {
	t.Run("valid preferred is kept", func(t *testing.T) {
		intent, substituted, err := Suggest(models.CategoryStore, models.TargetKindGroup, models.IntentUninstall)
		require.NoError(t, err)
		require.False(t, substituted)
		require.Equal(t, models.IntentUninstall, intent)
	})

	t.Run("invalid preferred is substituted", func(t *testing.T) {
		intent, substituted, err := Suggest(models.CategoryLineOfBusiness, models.TargetKindAllDevices, models.IntentAvailable)
		require.NoError(t, err)
		require.True(t, substituted)
		require.Equal(t, models.IntentRequired, intent)
	})

	t.Run("no valid intent is an error", func(t *testing.T) {
		_, _, err := Suggest(models.CategoryWebLink, models.TargetKindAllDevices, models.IntentRequired)
		require.Error(t, err)
		require.Equal(t, api.EINVALID, api.ErrorCode(err))
	})
}

func TestIntersect(t *testing.T) {
	t.Run("order follows the first category", func(t *testing.T) {
		got := Intersect([]models.AppCategory{models.CategoryStore, models.CategoryLineOfBusiness}, models.TargetKindGroup)
		require.Equal(t, []models.Intent{models.IntentRequired, models.IntentAvailable, models.IntentUninstall}, got)
	})

	t.Run("empty intersection", func(t *testing.T) {
		got := Intersect([]models.AppCategory{models.CategoryStore, models.CategoryWebLink}, models.TargetKindAllDevices)
		require.Empty(t, got)
	})

	t.Run("no categories", func(t *testing.T) {
		require.Nil(t, Intersect(nil, models.TargetKindGroup))
	})
}

func TestSuggestForAll(t *testing.T) {
	t.Run("substitutes into the intersection", func(t *testing.T) {
		categories := []models.AppCategory{models.CategoryStore, models.CategoryBuiltIn}
		intent, substituted, err := SuggestForAll(categories, models.TargetKindGroup, models.IntentAvailable)
		require.NoError(t, err)
		require.True(t, substituted)
		require.Equal(t, models.IntentRequired, intent)
	})

	t.Run("empty intersection is a reported error, not a silent skip", func(t *testing.T) {
		categories := []models.AppCategory{models.CategoryStore, models.CategoryWebLink}
		_, _, err := SuggestForAll(categories, models.TargetKindAllDevices, models.IntentRequired)
		require.Error(t, err)
		require.Equal(t, api.EINVALID, api.ErrorCode(err))
	})
}
