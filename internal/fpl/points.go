package fpl

// Scoring weights per the FPL rulebook. Goal and clean-sheet points depend on
// position; everything else is flat.
var (
	goalPoints       = map[Position]float64{PositionGKP: 6, PositionDEF: 6, PositionMID: 5, PositionFWD: 4}
	cleanSheetPoints = map[Position]float64{PositionGKP: 4, PositionDEF: 4, PositionMID: 1, PositionFWD: 0}
)

// ExpectedPoints converts a projection into expected fantasy points for a
// player at the given position. Appearance points scale with projected
// minutes: a full two-point appearance needs 60 minutes.
func ExpectedPoints(p Projection, position Position) float64 {
	points := appearancePoints(p.Minutes)
	points += p.Goals * goalPoints[position]
	points += p.Assists * 3
	points += p.CleanSheets * cleanSheetPoints[position]
	if position == PositionGKP {
		points += p.Saves / 3
	}
	if position == PositionGKP || position == PositionDEF {
		points -= p.GoalsConceded / 2
	}
	points -= p.YellowCards
	points -= p.RedCards * 3
	return points
}

func appearancePoints(minutes float64) float64 {
	switch {
	case minutes <= 0:
		return 0
	case minutes >= 60:
		return 2
	default:
		return 1 + minutes/60
	}
}
