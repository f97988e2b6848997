// Package reconcile aligns the ownership feed's player population with the
// projection feed's, despite the two providers sharing no numeric identity
// and spelling club names differently.
package reconcile

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
)

// Merge attaches projected points to every player that a projection record
// can be matched to, and zeroes the projection-derived fields of the rest.
// The result always contains exactly one entry per input player, in input
// order, and no projection is consumed twice.
func Merge(players []fpl.Player, projections []fpl.Projection) []fpl.Player {
	merged := make([]fpl.Player, len(players))
	copy(merged, players)
	for i := range merged {
		merged[i].ProjectedPoints = 0
	}

	clubMap := alignClubs(clubOrder(players), projectionClubs(projections))

	byClub := make(map[string][]int)
	for i, p := range players {
		byClub[p.Club] = append(byClub[p.Club], i)
	}
	projByClub := make(map[string][]int)
	for j, pr := range projections {
		projByClub[pr.Club] = append(projByClub[pr.Club], j)
	}

	for _, club := range clubOrder(players) {
		projClub, ok := clubMap[club]
		if !ok {
			continue
		}
		matchClub(merged, players, projections, byClub[club], projByClub[projClub])
	}

	return merged
}

// matchClub greedily pairs players and projections within one aligned club:
// score every pair, take the best unconsumed pair repeatedly, and drop pairs
// sharing either side with a consumed one. Ties resolve by pair build order,
// which is stable across runs but carries no meaning.
func matchClub(merged, players []fpl.Player, projections []fpl.Projection, playerIdx, projIdx []int) {
	type pair struct {
		score  float64
		pi, ji int
	}
	pairs := make([]pair, 0, len(playerIdx)*len(projIdx))
	for _, i := range playerIdx {
		for _, j := range projIdx {
			pairs = append(pairs, pair{score: similarity(players[i].Name, projections[j].Name), pi: i, ji: j})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].score > pairs[b].score
	})

	usedPlayer := make(map[int]bool)
	usedProj := make(map[int]bool)
	for _, p := range pairs {
		if usedPlayer[p.pi] || usedProj[p.ji] {
			continue
		}
		usedPlayer[p.pi] = true
		usedProj[p.ji] = true
		merged[p.pi].ProjectedPoints = fpl.ExpectedPoints(projections[p.ji], players[p.pi].Position)
		if opp := projections[p.ji].Opponent; opp != "" && merged[p.pi].NextOpponent == "" {
			merged[p.pi].NextOpponent = opp
		}
	}
}

// alignClubs maps ownership-feed club names to projection-feed club names.
// Exact matches bind first; the remainder are assigned greedily, in
// ownership-feed order, to the most similar still-unclaimed projection name.
func alignClubs(ownership, projection []string) map[string]string {
	aligned := make(map[string]string, len(ownership))
	claimed := make(map[string]bool, len(projection))

	exact := make(map[string]bool, len(projection))
	for _, name := range projection {
		exact[name] = true
	}
	var unmatched []string
	for _, name := range ownership {
		if exact[name] && !claimed[name] {
			aligned[name] = name
			claimed[name] = true
		} else {
			unmatched = append(unmatched, name)
		}
	}

	for _, name := range unmatched {
		best, bestScore := "", -1.0
		for _, candidate := range projection {
			if claimed[candidate] {
				continue
			}
			if score := similarity(name, candidate); score > bestScore {
				best, bestScore = candidate, score
			}
		}
		if best == "" {
			continue // projection pool exhausted, players fall to the unmatched path
		}
		aligned[name] = best
		claimed[best] = true
	}
	return aligned
}

// similarity is a normalized edit-distance ratio in [0,1], case-insensitive.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// clubOrder returns the distinct club names in first-appearance order.
func clubOrder(players []fpl.Player) []string {
	seen := make(map[string]bool)
	var order []string
	for _, p := range players {
		if !seen[p.Club] {
			seen[p.Club] = true
			order = append(order, p.Club)
		}
	}
	return order
}

func projectionClubs(projections []fpl.Projection) []string {
	seen := make(map[string]bool)
	var order []string
	for _, pr := range projections {
		if !seen[pr.Club] {
			seen[pr.Club] = true
			order = append(order, pr.Club)
		}
	}
	return order
}
