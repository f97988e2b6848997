package squad

import (
	"fmt"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
)

// ScoreModel selects the objective used to value a player.
type ScoreModel string

const (
	// ModelProjection scores by reconciled projected fantasy points.
	ModelProjection ScoreModel = "projection"
	// ModelQuality scores by the ownership feed's quality index, weighted
	// by availability and schedule.
	ModelQuality ScoreModel = "quality"
	// ModelOwnership scores by popularity, a proxy for expected value when
	// no projection feed is configured.
	ModelOwnership ScoreModel = "ownership"
)

func ParseScoreModel(s string) (ScoreModel, error) {
	switch ScoreModel(s) {
	case ModelProjection, ModelQuality, ModelOwnership:
		return ScoreModel(s), nil
	}
	return "", fmt.Errorf("unknown score model %q", s)
}

// NeedsProjections reports whether the model requires the projection feed.
func (m ScoreModel) NeedsProjections() bool {
	return m == ModelProjection
}

// SeasonObjective values a player over the rest of the season, as used for
// drafting and transfer decisions.
func (m ScoreModel) SeasonObjective() func(fpl.Player) float64 {
	switch m {
	case ModelProjection:
		return func(p fpl.Player) float64 { return p.ProjectedPoints }
	case ModelOwnership:
		return func(p fpl.Player) float64 { return p.SelectedByPercent }
	default:
		return func(p fpl.Player) float64 {
			return p.Quality * p.Availability * p.FixturesQuality
		}
	}
}

// MatchdayObjective values a player for the next fixture only, as used for
// lineup selection.
func (m ScoreModel) MatchdayObjective() func(fpl.Player) float64 {
	switch m {
	case ModelProjection:
		return func(p fpl.Player) float64 { return p.ProjectedPoints }
	case ModelOwnership:
		return func(p fpl.Player) float64 { return p.SelectedByPercent }
	default:
		return func(p fpl.Player) float64 {
			return p.Quality * p.Availability * p.NextFixtureQuality
		}
	}
}
