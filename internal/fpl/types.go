package fpl

import (
	"context"
	"time"
)

// Position is one of the four FPL squad positions.
type Position string

const (
	PositionGKP Position = "GKP"
	PositionDEF Position = "DEF"
	PositionMID Position = "MID"
	PositionFWD Position = "FWD"
)

// Positions lists the positions in display order.
var Positions = []Position{PositionGKP, PositionDEF, PositionMID, PositionFWD}

// DefaultClubQuota is the FPL limit on players owned from a single club.
const DefaultClubQuota = 3

// Player is the canonical post-reconciliation player record. Prices are in
// tenths of a million, matching the FPL API representation (55 = 5.5m).
// Identity is the numeric ID from the ownership feed; two Player values with
// the same ID refer to the same entity regardless of other fields.
type Player struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	Club               string   `json:"club"`
	NextOpponent       string   `json:"next_opponent"`
	Position           Position `json:"position"`
	BuyPrice           int      `json:"buy_price"`
	SellPrice          int      `json:"sell_price,omitempty"`
	IsOwned            bool     `json:"is_owned"`
	Quality            float64  `json:"quality"`
	Availability       float64  `json:"availability"`
	NextFixtureQuality float64  `json:"next_fixture_quality"`
	FixturesQuality    float64  `json:"fixtures_quality"`
	SelectedByPercent  float64  `json:"selected_by_percent"`
	ProjectedPoints    float64  `json:"projected_points"`
}

// Club is a canonical club with fixture-quality aggregates over the
// configured lookahead window.
type Club struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	NextOpponent       string  `json:"next_opponent"`
	NextFixtureQuality float64 `json:"next_fixture_quality"`
	FixturesQuality    float64 `json:"fixtures_quality"`
}

// ProjectionPeriod selects the horizon of a projection feed query.
type ProjectionPeriod string

const (
	ProjectionSeason ProjectionPeriod = "season"
	ProjectionWeekly ProjectionPeriod = "weekly"
)

// Projection is a raw performance-feed record. Club naming follows the
// projection provider's spelling and may not match the ownership feed.
type Projection struct {
	Name          string  `json:"name"`
	Club          string  `json:"club"`
	Opponent      string  `json:"opponent,omitempty"`
	Minutes       float64 `json:"minutes"`
	Goals         float64 `json:"goals"`
	Assists       float64 `json:"assists"`
	CleanSheets   float64 `json:"clean_sheets"`
	Saves         float64 `json:"saves"`
	GoalsConceded float64 `json:"goals_conceded"`
	YellowCards   float64 `json:"yellow_cards"`
	RedCards      float64 `json:"red_cards"`
}

// Raw ownership-feed records, pre-normalization.

type PlayerRecord struct {
	ID                int
	Name              string
	PositionID        int
	ClubID            int
	BuyPrice          int
	QualityIndex      float64
	SelectedByPercent float64
	News              string
	IsFullyAvailable  bool
}

type ClubRecord struct {
	ID   int
	Name string
}

type PositionRecord struct {
	ID   int
	Name string
}

// FixtureRecord carries per-club difficulty for one fixture. Difficulties
// map each participating club ID to an integer in [1,5].
type FixtureRecord struct {
	ID           int
	KickoffTime  time.Time
	Started      bool
	Difficulties map[int]int
}

// PickRecord is a currently-owned squad slot.
type PickRecord struct {
	PlayerID  int
	SellPrice int
}

// SquadProvider is the ownership-feed contract, authoritative for identity,
// price and squad state.
type SquadProvider interface {
	Players(ctx context.Context) ([]PlayerRecord, error)
	Clubs(ctx context.Context) ([]ClubRecord, error)
	Positions(ctx context.Context) ([]PositionRecord, error)
	Fixtures(ctx context.Context) ([]FixtureRecord, error)
	Picks(ctx context.Context) ([]PickRecord, error)
	Bank(ctx context.Context) (int, error)
	FreeTransfers(ctx context.Context) (int, error)
}

// ProjectionProvider is the performance-feed contract, authoritative for
// projected output. Only consulted when projection scoring is active.
type ProjectionProvider interface {
	Projections(ctx context.Context, period ProjectionPeriod) ([]Projection, error)
}

// CacheProvider is the subset of the cache service the pool and providers
// depend on.
type CacheProvider interface {
	SetSimple(key string, value interface{}, expiration time.Duration) error
	GetSimple(key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}
