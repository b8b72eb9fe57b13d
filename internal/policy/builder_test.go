package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rosterwatch/pkg/domain"
)

type fakeDirectory struct {
	residents map[domain.Identifier][]domain.Identifier
	officers  map[domain.Identifier][]domain.Identifier
	failOn    domain.Identifier
	calls     []string
}

func (f *fakeDirectory) RegionResidents(_ context.Context, region domain.Identifier) ([]domain.Identifier, error) {
	f.calls = append(f.calls, "residents:"+region.String())
	if region == f.failOn {
		return nil, errors.New("boom")
	}
	return f.residents[region], nil
}

func (f *fakeDirectory) RegionOfficers(_ context.Context, region domain.Identifier) ([]domain.Identifier, error) {
	f.calls = append(f.calls, "officers:"+region.String())
	if region == f.failOn {
		return nil, errors.New("boom")
	}
	return f.officers[region], nil
}

type BuilderSuite struct {
	suite.Suite
	dir    *fakeDirectory
	sleeps []time.Duration
	b      *Builder
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	s.dir = &fakeDirectory{
		residents: map[domain.Identifier][]domain.Identifier{
			"home":    {"local_a", "local_b"},
			"allies":  {"ally_a"},
			"raiders": {"raider_a", "raider_b"},
		},
		officers: map[domain.Identifier][]domain.Identifier{
			"home": {"delegate", "minister"},
		},
	}
	s.sleeps = nil
	var err error
	s.b, err = NewBuilder(s.dir,
		WithDelay(650*time.Millisecond),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			s.sleeps = append(s.sleeps, d)
			return nil
		}),
	)
	s.Require().NoError(err)
}

func (s *BuilderSuite) TestNewBuilder() {
	_, err := NewBuilder(nil)
	s.Error(err)
	s.Contains(err.Error(), "directory is required")
}

func (s *BuilderSuite) TestBuild_AllSources() {
	sets, err := s.b.Build(context.Background(), Options{
		HomeRegion:       "home",
		IgnoreOfficers:   true,
		IgnoreResidents:  true,
		WhitelistNations: []string{"Trusted Friend"},
		BlacklistNations: []string{"Known Bandit", "known bandit"},
		WhitelistRegions: []string{"Allies"},
		BlacklistRegions: []string{"Raiders"},
	})
	s.Require().NoError(err)

	s.Equal([]domain.Identifier{"delegate", "minister", "trusted_friend"}, sets.WhitelistExplicit.Sorted())
	s.Equal([]domain.Identifier{"ally_a", "local_a", "local_b"}, sets.WhitelistImplicit.Sorted())
	s.Equal([]domain.Identifier{"known_bandit"}, sets.BlacklistExplicit.Sorted())
	s.Equal([]domain.Identifier{"raider_a", "raider_b"}, sets.BlacklistImplicit.Sorted())

	s.Equal([]string{"officers:home", "residents:home", "residents:allies", "residents:raiders"}, s.dir.calls)
	s.Len(s.sleeps, 4, "every remote lookup is followed by the fixed delay")
}

func (s *BuilderSuite) TestBuild_HomeRegionFlagsOff() {
	sets, err := s.b.Build(context.Background(), Options{HomeRegion: "home"})
	s.Require().NoError(err)
	s.Empty(s.dir.calls)
	s.Equal(Counts{}, sets.Counts())
}

func (s *BuilderSuite) TestBuild_LookupFailureIsFatal() {
	s.dir.failOn = "raiders"
	_, err := s.b.Build(context.Background(), Options{BlacklistRegions: []string{"raiders"}})
	s.Require().Error(err)
	s.Contains(err.Error(), "region raiders")
}

func TestBuild_CancelledDuringDelay(t *testing.T) {
	dir := &fakeDirectory{residents: map[domain.Identifier][]domain.Identifier{"allies": {"a"}}}
	b, err := NewBuilder(dir, WithDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Build(ctx, Options{WhitelistRegions: []string{"allies"}})
	assert.ErrorIs(t, err, context.Canceled)
}
