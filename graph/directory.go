package graph

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	"github.com/mdmkit/assignsync/models"
)

const (
	groupsCacheKey  = "groups"
	filtersCacheKey = "filters"
)

// GroupDirectory is a read-only directory of target groups, cached
// in-memory. It satisfies the conflict detector's group lookup.
type GroupDirectory struct {
	client *Client
	cache  *gocache.Cache
}

func NewGroupDirectory(client *Client) *GroupDirectory {
	return &GroupDirectory{
		client: client,
		cache:  gocache.New(10*time.Minute, 15*time.Minute),
	}
}

// Refresh replaces the cached directory with a fresh listing.
func (t *GroupDirectory) Refresh(ctx context.Context) error {
	groups, err := t.client.ListGroups(ctx)
	if err != nil {
		return err
	}

	byID := lo.KeyBy(groups, func(g models.TargetGroup) string { return g.ID })
	t.cache.Set(groupsCacheKey, byID, gocache.DefaultExpiration)
	return nil
}

// Lookup resolves a group by id from the cached directory. A cold or
// expired cache yields no result rather than a remote call: lookups
// run synchronously inside conflict detection.
func (t *GroupDirectory) Lookup(id string) (models.TargetGroup, bool) {
	cached, found := t.cache.Get(groupsCacheKey)
	if !found {
		return models.TargetGroup{}, false
	}

	group, ok := cached.(map[string]models.TargetGroup)[id]
	return group, ok
}

// All returns the cached groups sorted by display name.
func (t *GroupDirectory) All() []models.TargetGroup {
	cached, found := t.cache.Get(groupsCacheKey)
	if !found {
		return nil
	}

	groups := lo.Values(cached.(map[string]models.TargetGroup))
	sort.Slice(groups, func(i, j int) bool { return groups[i].DisplayName < groups[j].DisplayName })
	return groups
}

// FilterDirectory is a read-only directory of assignment filter
// metadata, used purely for display.
type FilterDirectory struct {
	client *Client
	cache  *gocache.Cache
}

func NewFilterDirectory(client *Client) *FilterDirectory {
	return &FilterDirectory{
		client: client,
		cache:  gocache.New(10*time.Minute, 15*time.Minute),
	}
}

func (t *FilterDirectory) Refresh(ctx context.Context) error {
	filters, err := t.client.ListFilters(ctx)
	if err != nil {
		return err
	}

	byID := lo.KeyBy(filters, func(f models.FilterInfo) string { return f.ID })
	t.cache.Set(filtersCacheKey, byID, gocache.DefaultExpiration)
	return nil
}

func (t *FilterDirectory) Lookup(id string) (models.FilterInfo, bool) {
	cached, found := t.cache.Get(filtersCacheKey)
	if !found {
		return models.FilterInfo{}, false
	}

	filter, ok := cached.(map[string]models.FilterInfo)[id]
	return filter, ok
}
