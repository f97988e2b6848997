// Package squad hosts the decision drivers that assemble constraint sets and
// hand them to the optimizer: the initial draft and the weekly lineup.
package squad

import (
	"context"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/optimizer"
)

// SquadSize is the FPL squad size: 2 goalkeepers, 5 defenders, 5
// midfielders, 3 forwards.
const SquadSize = 15

// DefaultBudget is the initial bank in price tenths (100.0m).
const DefaultBudget = 1000

// PositionQuotas is the fixed squad shape.
var PositionQuotas = map[fpl.Position]int{
	fpl.PositionGKP: 2,
	fpl.PositionDEF: 5,
	fpl.PositionMID: 5,
	fpl.PositionFWD: 3,
}

// DraftConfig tunes the initial-squad search.
type DraftConfig struct {
	Budget     int
	ClubQuota  int
	ClubLimits map[string]int
}

func (c DraftConfig) withDefaults() DraftConfig {
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.ClubQuota <= 0 {
		c.ClubQuota = fpl.DefaultClubQuota
	}
	return c
}

// Draft selects the optimal 15-man squad from the full population under the
// budget, formation and club-quota constraints.
func Draft(ctx context.Context, players []fpl.Player, cfg DraftConfig, score func(fpl.Player) float64) ([]fpl.Player, error) {
	cfg = cfg.withDefaults()

	opt := optimizer.New(players)
	opt.SetBudgetConstraint(cfg.Budget)
	for position, quota := range PositionQuotas {
		opt.SetPositionConstraint(position, quota, quota)
	}
	limits := make(map[string]int, len(cfg.ClubLimits))
	for club, limit := range cfg.ClubLimits {
		limits[club] = limit
	}
	if cfg.ClubQuota != fpl.DefaultClubQuota {
		for _, p := range players {
			if _, ok := limits[p.Club]; !ok {
				limits[p.Club] = cfg.ClubQuota
			}
		}
	}
	opt.SetClubConstraints(limits)

	return opt.Solve(ctx, score)
}
