package optimizer

import (
	"context"
	"errors"
	"math"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
)

// ErrInfeasible is returned by Solve when the accumulated constraints admit
// no satisfying selection. Callers must treat it as a recoverable outcome,
// distinct from an empty optimal result.
var ErrInfeasible = errors.New("optimizer: model is infeasible")

// Unlimited marks a position constraint with no upper bound.
const Unlimited = math.MaxInt32

// Optimizer builds a 0/1 integer program over a player population. Each
// player gets one binary decision variable (1 = selected); constraints
// accumulate conjunctively until Solve is called.
type Optimizer struct {
	players []fpl.Player
	rows    []row
	fixed   []float64 // per-variable upper bound, 1 or 0 when excluded
}

// row is a linear constraint lo <= coeffs.x <= hi over the decision vector.
type row struct {
	coeffs []float64
	lo, hi float64
}

func New(players []fpl.Player) *Optimizer {
	fixed := make([]float64, len(players))
	for i := range fixed {
		fixed[i] = 1
	}
	return &Optimizer{players: players, fixed: fixed}
}

// SetBudgetConstraint bounds the total acquisition price of the selection.
func (o *Optimizer) SetBudgetConstraint(limit int) {
	coeffs := make([]float64, len(o.players))
	for i, p := range o.players {
		coeffs[i] = float64(p.BuyPrice)
	}
	o.rows = append(o.rows, row{coeffs: coeffs, lo: math.Inf(-1), hi: float64(limit)})
}

// SetPositionConstraint bounds the number of selected players at a position.
// Pass Unlimited for an unbounded maximum.
func (o *Optimizer) SetPositionConstraint(position fpl.Position, minimum, maximum int) {
	coeffs := make([]float64, len(o.players))
	for i, p := range o.players {
		if p.Position == position {
			coeffs[i] = 1
		}
	}
	hi := math.Inf(1)
	if maximum != Unlimited {
		hi = float64(maximum)
	}
	o.rows = append(o.rows, row{coeffs: coeffs, lo: float64(minimum), hi: hi})
}

// SetClubConstraints caps the number of selected players per club. Clubs
// absent from limits use fpl.DefaultClubQuota.
func (o *Optimizer) SetClubConstraints(limits map[string]int) {
	clubs := make(map[string][]int)
	order := make([]string, 0)
	for i, p := range o.players {
		if _, seen := clubs[p.Club]; !seen {
			order = append(order, p.Club)
		}
		clubs[p.Club] = append(clubs[p.Club], i)
	}
	for _, club := range order {
		quota := fpl.DefaultClubQuota
		if limit, ok := limits[club]; ok {
			quota = limit
		}
		coeffs := make([]float64, len(o.players))
		for _, i := range clubs[club] {
			coeffs[i] = 1
		}
		o.rows = append(o.rows, row{coeffs: coeffs, lo: math.Inf(-1), hi: float64(quota)})
	}
}

// SetResultSizeConstraint forces the selection to contain exactly size players.
func (o *Optimizer) SetResultSizeConstraint(size int) {
	coeffs := make([]float64, len(o.players))
	for i := range coeffs {
		coeffs[i] = 1
	}
	o.rows = append(o.rows, row{coeffs: coeffs, lo: float64(size), hi: float64(size)})
}

// SetExclusionConstraint removes the given players from consideration.
// Matching is by ID, the only identity the ownership feed guarantees.
func (o *Optimizer) SetExclusionConstraint(excluded []fpl.Player) {
	ids := make(map[int]bool, len(excluded))
	for _, p := range excluded {
		ids[p.ID] = true
	}
	for i, p := range o.players {
		if ids[p.ID] {
			o.fixed[i] = 0
		}
	}
}

// Solve maximizes the sum of score(p) over selected players subject to the
// accumulated constraints and returns the selected players. The context
// bounds solver time; ErrInfeasible reports a model with no valid selection.
func (o *Optimizer) Solve(ctx context.Context, score func(fpl.Player) float64) ([]fpl.Player, error) {
	if len(o.players) == 0 {
		return o.solveEmpty()
	}

	objective := make([]float64, len(o.players))
	for i, p := range o.players {
		objective[i] = score(p)
	}

	selection, err := solveBinary(ctx, objective, o.rows, o.fixed)
	if err != nil {
		return nil, err
	}

	selected := make([]fpl.Player, 0, len(selection))
	for i, chosen := range selection {
		if chosen {
			selected = append(selected, o.players[i])
		}
	}
	return selected, nil
}

// solveEmpty resolves the degenerate zero-player model: feasible only when
// every constraint admits an empty selection.
func (o *Optimizer) solveEmpty() ([]fpl.Player, error) {
	for _, r := range o.rows {
		if r.lo > 0 || r.hi < 0 {
			return nil, ErrInfeasible
		}
	}
	return []fpl.Player{}, nil
}
