package nsapi

import (
	"context"
	"errors"
	"fmt"

	"rosterwatch/pkg/domain"
	"rosterwatch/pkg/platform/sentinel"
)

// Membership is a region roster together with the region's last update time.
// HasLastUpdate is false when the response carried no readable timestamp.
type Membership struct {
	Members       []domain.Identifier
	LastUpdate    int64
	HasLastUpdate bool
	Throttled     bool
}

// read fetches like Fetch but repeats a read the server refused with a 429.
// The wait has already elapsed when Fetch returns, so the repeat is paced.
func (c *Client) read(ctx context.Context, kind EntityKind, id domain.Identifier, shards ...Shard) (*Result, error) {
	throttled := false
	for {
		result, err := c.Fetch(ctx, kind, id, shards...)
		if err != nil {
			return nil, err
		}
		throttled = throttled || result.Throttled
		if !result.Throttled || !result.Empty() {
			result.Throttled = throttled
			return result, nil
		}
		c.logger.InfoContext(ctx, "repeating throttled read", "kind", kind, "id", id)
	}
}

// RegionMembers reads the roster of region. With waOnly set it reads World
// Assembly members only. A response without the roster field returns
// ErrNoData.
func (c *Client) RegionMembers(ctx context.Context, region domain.Identifier, waOnly bool) (Membership, error) {
	shard, field := ShardNations, FieldNations
	if waOnly {
		shard, field = ShardWANations, FieldUNNations
	}

	result, err := c.read(ctx, KindRegion, region, shard, ShardLastUpdate)
	if err != nil {
		return Membership{}, err
	}

	members, err := result.Identifiers(field)
	if err != nil {
		return Membership{Throttled: result.Throttled}, fmt.Errorf("region %s members: %w", region, err)
	}

	lastUpdate, err := result.Int(FieldLastUpdate)
	if err != nil && !errors.Is(err, sentinel.ErrNoData) {
		return Membership{}, err
	}

	return Membership{
		Members:       members,
		LastUpdate:    lastUpdate,
		HasLastUpdate: err == nil,
		Throttled:     result.Throttled,
	}, nil
}

// RegionOfficers returns the delegate (when there is one) followed by the
// regional officers of region, de-duplicated.
func (c *Client) RegionOfficers(ctx context.Context, region domain.Identifier) ([]domain.Identifier, error) {
	result, err := c.read(ctx, KindRegion, region, ShardOfficers, ShardDelegate)
	if err != nil {
		return nil, err
	}

	delegate, delegateErr := result.Identifiers(FieldDelegate)
	officers, officersErr := result.Identifiers(FieldOfficers)
	if delegateErr != nil && officersErr != nil {
		return nil, fmt.Errorf("region %s officers: %w", region, sentinel.ErrNoData)
	}

	seen := domain.NewSet()
	var out []domain.Identifier
	for _, id := range append(delegate, officers...) {
		if seen.Contains(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out, nil
}

// NationRegion returns the region nation currently resides in.
func (c *Client) NationRegion(ctx context.Context, nation domain.Identifier) (domain.Identifier, error) {
	result, err := c.read(ctx, KindNation, nation, ShardRegion)
	if err != nil {
		return "", err
	}
	regions, err := result.Identifiers(FieldRegion)
	if err != nil {
		return "", fmt.Errorf("nation %s region: %w", nation, err)
	}
	if len(regions) == 0 {
		return "", fmt.Errorf("nation %s region: %w", nation, sentinel.ErrNoData)
	}
	return regions[0], nil
}

// RegionResidents returns every nation residing in region.
func (c *Client) RegionResidents(ctx context.Context, region domain.Identifier) ([]domain.Identifier, error) {
	m, err := c.RegionMembers(ctx, region, false)
	if err != nil {
		return nil, err
	}
	return m.Members, nil
}
