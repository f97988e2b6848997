package squad

import (
	"context"
	"fmt"
	"sort"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/optimizer"
)

// StartersCount is the number of players fielded on a matchday.
const StartersCount = 11

// Lineup is a fielded starting eleven with its bench order and armbands.
type Lineup struct {
	Starters    []fpl.Player `json:"starters"`
	Bench       []fpl.Player `json:"bench"`
	Captain     fpl.Player   `json:"captain"`
	ViceCaptain fpl.Player   `json:"vice_captain"`
}

// Formation renders the starting shape, e.g. "4-4-2".
func (l *Lineup) Formation() string {
	count := func(position fpl.Position) int {
		n := 0
		for _, p := range l.Starters {
			if p.Position == position {
				n++
			}
		}
		return n
	}
	return fmt.Sprintf("%d-%d-%d", count(fpl.PositionDEF), count(fpl.PositionMID), count(fpl.PositionFWD))
}

// PickLineup selects the optimal starting eleven from the owned squad:
// exactly one goalkeeper, at least three defenders, at least one forward.
// The captain and vice-captain are the two highest-scoring starters; the
// bench is the rest of the squad in descending score order.
func PickLineup(ctx context.Context, owned []fpl.Player, score func(fpl.Player) float64) (*Lineup, error) {
	opt := optimizer.New(owned)
	opt.SetPositionConstraint(fpl.PositionGKP, 1, 1)
	opt.SetPositionConstraint(fpl.PositionDEF, 3, optimizer.Unlimited)
	opt.SetPositionConstraint(fpl.PositionFWD, 1, optimizer.Unlimited)
	opt.SetResultSizeConstraint(StartersCount)

	starters, err := opt.Solve(ctx, score)
	if err != nil {
		return nil, err
	}

	started := make(map[int]bool, len(starters))
	for _, p := range starters {
		started[p.ID] = true
	}
	bench := make([]fpl.Player, 0, len(owned)-len(starters))
	for _, p := range owned {
		if !started[p.ID] {
			bench = append(bench, p)
		}
	}
	sort.SliceStable(bench, func(i, j int) bool {
		return score(bench[i]) > score(bench[j])
	})

	ranked := append([]fpl.Player(nil), starters...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})

	lineup := &Lineup{Starters: starters, Bench: bench}
	if len(ranked) > 0 {
		lineup.Captain = ranked[0]
	}
	if len(ranked) > 1 {
		lineup.ViceCaptain = ranked[1]
	}
	return lineup, nil
}
