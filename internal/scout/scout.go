// Package scout searches for the best set of transfers: every combination of
// outgoing squad players up to the free-transfer allowance, each evaluated by
// an independent optimizer run over the remaining market.
package scout

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/optimizer"
)

// Recommendation is the best swap found across all evaluated combinations.
type Recommendation struct {
	Out       []fpl.Player `json:"out"`
	In        []fpl.Player `json:"in"`
	NetGain   float64      `json:"net_gain"`
	Evaluated int          `json:"evaluated"`
	Skipped   int          `json:"skipped"`
}

// Scout runs transfer searches. Combinations are solved independently, so
// they fan out across a bounded worker pool; no state is shared between
// solves.
type Scout struct {
	logger       *logrus.Logger
	workers      int
	solveTimeout time.Duration
	clubQuota    int
}

func New(logger *logrus.Logger, workers int, solveTimeout time.Duration) *Scout {
	if workers <= 0 {
		workers = 4
	}
	if solveTimeout <= 0 {
		solveTimeout = 10 * time.Second
	}
	return &Scout{
		logger:       logger,
		workers:      workers,
		solveTimeout: solveTimeout,
		clubQuota:    fpl.DefaultClubQuota,
	}
}

type evaluation struct {
	index    int
	outgoing []fpl.Player
	incoming []fpl.Player
	netGain  float64
	skipped  bool
}

// Search enumerates every outgoing combination of size 1..freeTransfers from
// the owned squad, solves for the best affordable replacements of the same
// positional shape, and returns the combination with the greatest net gain.
// A zero transfer allowance performs no solves and returns nil. Infeasible
// or timed-out combinations are skipped, never fatal.
func (s *Scout) Search(ctx context.Context, players []fpl.Player, bank, freeTransfers int, score func(fpl.Player) float64) (*Recommendation, error) {
	if freeTransfers <= 0 {
		s.logger.Info("No free transfers available, skipping scout run")
		return nil, nil
	}

	var owned []fpl.Player
	for _, p := range players {
		if p.IsOwned {
			owned = append(owned, p)
		}
	}
	if len(owned) == 0 {
		return nil, nil
	}
	if freeTransfers > len(owned) {
		freeTransfers = len(owned)
	}

	combos := combinations(len(owned), freeTransfers)
	s.logger.Infof("Scouting %d transfer combinations across %d workers", len(combos), s.workers)

	jobs := make(chan int)
	results := make([]evaluation, len(combos))
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = s.evaluate(ctx, idx, players, owned, combos[idx], bank, score)
			}
		}()
	}
	for idx := range combos {
		select {
		case <-ctx.Done():
			// Stop feeding; queued workers drain what they have.
		case jobs <- idx:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := -1
	skipped := 0
	for i, ev := range results {
		if ev.skipped {
			skipped++
			continue
		}
		// Strict improvement only, so equal gains resolve to the earliest
		// combination and runs stay reproducible.
		if best < 0 || ev.netGain > results[best].netGain {
			best = i
		}
	}
	if best < 0 {
		s.logger.Warn("Every transfer combination was infeasible")
		return nil, nil
	}

	winner := results[best]
	return &Recommendation{
		Out:       winner.outgoing,
		In:        winner.incoming,
		NetGain:   winner.netGain,
		Evaluated: len(combos) - skipped,
		Skipped:   skipped,
	}, nil
}

// evaluate solves one outgoing combination: exclude the whole current squad,
// budget the bank plus the freed disposal value, shrink club quotas by the
// retained squad, and require exactly the vacated positional shape back.
func (s *Scout) evaluate(ctx context.Context, index int, players, owned []fpl.Player, combo []int, bank int, score func(fpl.Player) float64) evaluation {
	outgoing := make([]fpl.Player, len(combo))
	going := make(map[int]bool, len(combo))
	for i, idx := range combo {
		outgoing[i] = owned[idx]
		going[owned[idx].ID] = true
	}

	budget := bank
	vacated := make(map[fpl.Position]int)
	for _, p := range outgoing {
		budget += p.SellPrice
		vacated[p.Position]++
	}

	limits := make(map[string]int)
	for _, p := range owned {
		if going[p.ID] {
			continue
		}
		if _, ok := limits[p.Club]; !ok {
			limits[p.Club] = s.clubQuota
		}
		limits[p.Club]--
		if limits[p.Club] < 0 {
			limits[p.Club] = 0
		}
	}

	opt := optimizer.New(players)
	opt.SetExclusionConstraint(owned)
	opt.SetBudgetConstraint(budget)
	opt.SetClubConstraints(limits)
	for _, position := range fpl.Positions {
		opt.SetPositionConstraint(position, vacated[position], vacated[position])
	}

	solveCtx, cancel := context.WithTimeout(ctx, s.solveTimeout)
	defer cancel()
	incoming, err := opt.Solve(solveCtx, score)
	if err != nil {
		s.logger.Debugf("Combination %d yields no valid squad: %v", index, err)
		return evaluation{index: index, skipped: true}
	}

	netGain := 0.0
	for _, p := range incoming {
		netGain += score(p)
	}
	for _, p := range outgoing {
		netGain -= score(p)
	}
	sort.SliceStable(incoming, func(i, j int) bool {
		return score(incoming[i]) > score(incoming[j])
	})
	return evaluation{index: index, outgoing: outgoing, incoming: incoming, netGain: netGain}
}

// combinations returns every index subset of {0..n-1} of size 1..k, in
// lexicographic order by ascending size.
func combinations(n, k int) [][]int {
	var all [][]int
	for size := 1; size <= k; size++ {
		combo := make([]int, size)
		var build func(start, depth int)
		build = func(start, depth int) {
			if depth == size {
				all = append(all, append([]int(nil), combo...))
				return
			}
			for i := start; i <= n-(size-depth); i++ {
				combo[depth] = i
				build(i+1, depth+1)
			}
		}
		build(0, 0)
	}
	return all
}
