package radar

import (
	"context"

	"rosterwatch/internal/nsapi"
	"rosterwatch/pkg/domain"
)

// Reading is one poll of the watched roster. LastUpdate is only meaningful
// when HasLastUpdate is set.
type Reading struct {
	Snapshot      domain.Snapshot
	LastUpdate    int64
	HasLastUpdate bool
}

// Source produces readings of the watched roster. A reading without roster
// data is reported as sentinel.ErrNoData.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// RosterReader is the subset of the Read API client used by RegionSource.
type RosterReader interface {
	RegionMembers(ctx context.Context, region domain.Identifier, waOnly bool) (nsapi.Membership, error)
}

// RegionSource reads the nation roster of one region.
type RegionSource struct {
	reader RosterReader
	region domain.Identifier
	waOnly bool
}

// NewRegionSource watches region. With waOnly set only World Assembly members
// are read.
func NewRegionSource(reader RosterReader, region domain.Identifier, waOnly bool) *RegionSource {
	return &RegionSource{reader: reader, region: region, waOnly: waOnly}
}

func (s *RegionSource) Read(ctx context.Context) (Reading, error) {
	m, err := s.reader.RegionMembers(ctx, s.region, s.waOnly)
	if err != nil {
		return Reading{}, err
	}
	return Reading{
		Snapshot:      domain.NewSnapshot(m.Members),
		LastUpdate:    m.LastUpdate,
		HasLastUpdate: m.HasLastUpdate,
	}, nil
}
