package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/reconcile"
)

// DefaultFixtureLookahead is the number of upcoming fixtures folded into a
// club's aggregate fixture quality.
const DefaultFixtureLookahead = 6

// PlayerService turns raw feed records into the canonical player population.
// Any feed failure is fatal to the run; there is no partial-data mode.
type PlayerService struct {
	squad       fpl.SquadProvider
	projections fpl.ProjectionProvider
	logger      *logrus.Logger
	lookahead   int
}

func NewPlayerService(squad fpl.SquadProvider, projections fpl.ProjectionProvider, logger *logrus.Logger, lookahead int) *PlayerService {
	if lookahead <= 0 {
		lookahead = DefaultFixtureLookahead
	}
	return &PlayerService{
		squad:       squad,
		projections: projections,
		logger:      logger,
		lookahead:   lookahead,
	}
}

// Players builds the canonical population from the ownership feed alone.
func (s *PlayerService) Players(ctx context.Context) ([]fpl.Player, error) {
	records, err := s.squad.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch players: %w", err)
	}
	positions, err := s.squad.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	picks, err := s.squad.Picks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch picks: %w", err)
	}
	clubs, err := s.Clubs(ctx)
	if err != nil {
		return nil, err
	}

	positionNames := make(map[int]fpl.Position, len(positions))
	for _, p := range positions {
		positionNames[p.ID] = fpl.Position(p.Name)
	}
	clubLookup := make(map[int]fpl.Club, len(clubs))
	for _, c := range clubs {
		clubLookup[c.ID] = c
	}
	pickLookup := make(map[int]fpl.PickRecord, len(picks))
	for _, p := range picks {
		pickLookup[p.PlayerID] = p
	}

	players := make([]fpl.Player, 0, len(records))
	for _, r := range records {
		position, ok := positionNames[r.PositionID]
		if !ok {
			s.logger.Warnf("Player %d has unknown position %d, skipping", r.ID, r.PositionID)
			continue
		}
		club := clubLookup[r.ClubID]
		player := fpl.Player{
			ID:                 r.ID,
			Name:               r.Name,
			Club:               club.Name,
			NextOpponent:       club.NextOpponent,
			Position:           position,
			BuyPrice:           r.BuyPrice,
			Quality:            r.QualityIndex,
			Availability:       availability(r),
			NextFixtureQuality: club.NextFixtureQuality,
			FixturesQuality:    club.FixturesQuality,
			SelectedByPercent:  r.SelectedByPercent,
		}
		if pick, owned := pickLookup[r.ID]; owned {
			player.IsOwned = true
			player.SellPrice = pick.SellPrice
		}
		players = append(players, player)
	}

	s.logger.Debugf("Normalized %d players across %d clubs", len(players), len(clubs))
	return players, nil
}

// PlayersWithProjections builds the population and reconciles the projection
// feed into it for the given period.
func (s *PlayerService) PlayersWithProjections(ctx context.Context, period fpl.ProjectionPeriod) ([]fpl.Player, error) {
	players, err := s.Players(ctx)
	if err != nil {
		return nil, err
	}
	if s.projections == nil {
		return nil, fmt.Errorf("projection feed not configured")
	}
	projections, err := s.projections.Projections(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("fetch projections: %w", err)
	}

	merged := reconcile.Merge(players, projections)

	matched := 0
	for _, p := range merged {
		if p.ProjectedPoints != 0 {
			matched++
		}
	}
	s.logger.Infof("Reconciled %d of %d players against %d projections", matched, len(merged), len(projections))
	return merged, nil
}

// Clubs derives per-club fixture-quality aggregates over the lookahead
// window. Single-fixture quality is 1-(difficulty-1)/4 for difficulty in
// [1,5]; the aggregate is the mean over the window.
func (s *PlayerService) Clubs(ctx context.Context) ([]fpl.Club, error) {
	records, err := s.squad.Clubs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch clubs: %w", err)
	}
	fixtures, err := s.squad.Fixtures(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures: %w", err)
	}
	sort.SliceStable(fixtures, func(i, j int) bool {
		return fixtures[i].KickoffTime.Before(fixtures[j].KickoffTime)
	})

	names := make(map[int]string, len(records))
	for _, r := range records {
		names[r.ID] = r.Name
	}

	clubs := make([]fpl.Club, 0, len(records))
	for _, r := range records {
		club := fpl.Club{ID: r.ID, Name: r.Name}
		upcoming := upcomingFor(fixtures, r.ID, s.lookahead)
		if len(upcoming) > 0 {
			qualities := make([]float64, len(upcoming))
			for i, f := range upcoming {
				qualities[i] = fixtureQuality(f.Difficulties[r.ID])
			}
			club.NextFixtureQuality = qualities[0]
			club.FixturesQuality = stat.Mean(qualities, nil)
			club.NextOpponent = names[opponentOf(upcoming[0], r.ID)]
		} else {
			s.logger.Warnf("Club %s has no upcoming fixtures", r.Name)
		}
		clubs = append(clubs, club)
	}
	return clubs, nil
}

// Bank returns the available budget surplus in price tenths.
func (s *PlayerService) Bank(ctx context.Context) (int, error) {
	return s.squad.Bank(ctx)
}

// FreeTransfers returns the number of transfers available without penalty.
func (s *PlayerService) FreeTransfers(ctx context.Context) (int, error) {
	return s.squad.FreeTransfers(ctx)
}

// availability maps the feed's flag-plus-news pair to a fraction in [0,1].
// A fully available player is 1; otherwise the percent token in the news
// text decides, and its absence means the player is out entirely.
func availability(r fpl.PlayerRecord) float64 {
	if r.IsFullyAvailable {
		return 1
	}
	for _, token := range strings.Fields(r.News) {
		if !strings.HasSuffix(token, "%") {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(token, "%"), 64)
		if err != nil {
			continue
		}
		return value / 100
	}
	return 0
}

func fixtureQuality(difficulty int) float64 {
	return 1 - float64(difficulty-1)/4
}

func upcomingFor(fixtures []fpl.FixtureRecord, clubID, limit int) []fpl.FixtureRecord {
	var upcoming []fpl.FixtureRecord
	for _, f := range fixtures {
		if f.Started {
			continue
		}
		if _, plays := f.Difficulties[clubID]; !plays {
			continue
		}
		upcoming = append(upcoming, f)
		if len(upcoming) == limit {
			break
		}
	}
	return upcoming
}

func opponentOf(f fpl.FixtureRecord, clubID int) int {
	for id := range f.Difficulties {
		if id != clubID {
			return id
		}
	}
	return 0
}
