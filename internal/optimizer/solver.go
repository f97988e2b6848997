package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// integerTol decides when a relaxed variable counts as integral.
	integerTol = 1e-6
	// pruneTol guards incumbent comparisons against simplex noise.
	pruneTol = 1e-9
	// maxNodes caps the branch-and-bound tree so a pathological model
	// degrades to an infeasibility report instead of hanging a search.
	maxNodes = 50000
)

var errNodeLimit = errors.New("optimizer: branch-and-bound node limit reached")

// solveBinary maximizes objective.x over binary x subject to rows, with
// upper[i] == 0 fixing a variable out of the model. It branches on the most
// fractional variable of the LP relaxation, solving each relaxation with
// gonum's simplex. The context is checked between nodes.
func solveBinary(ctx context.Context, objective []float64, rows []row, upper []float64) ([]bool, error) {
	n := len(objective)

	type node struct {
		lb, ub []float64
	}
	root := node{lb: make([]float64, n), ub: append([]float64(nil), upper...)}
	stack := []node{root}

	var (
		incumbent    []float64
		incumbentVal = math.Inf(-1)
		found        bool
		visited      int
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimizer: solve cancelled: %w", err)
		}
		visited++
		if visited > maxNodes {
			return nil, errNodeLimit
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		val, x, err := solveRelaxation(objective, rows, nd.lb, nd.ub)
		if errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded) {
			continue
		}
		if err != nil {
			// A simplex failure is a solver fault, never evidence the
			// branch holds no selection.
			return nil, fmt.Errorf("optimizer: relaxation failed: %w", err)
		}
		if found && val <= incumbentVal+pruneTol {
			continue
		}

		branch := mostFractional(x)
		if branch < 0 {
			incumbent = x
			incumbentVal = val
			found = true
			continue
		}

		// Push the zero branch first so the one branch is explored first;
		// selecting tends to reach good incumbents sooner.
		zero := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...)}
		zero.ub[branch] = 0
		one := node{lb: append([]float64(nil), nd.lb...), ub: append([]float64(nil), nd.ub...)}
		one.lb[branch] = 1
		stack = append(stack, zero, one)
	}

	if !found {
		return nil, ErrInfeasible
	}

	selection := make([]bool, n)
	for i, v := range incumbent {
		selection[i] = v > 0.5
	}
	return selection, nil
}

// mostFractional returns the index whose relaxed value is farthest from an
// integer, or -1 when the solution is integral. The first maximum wins so
// branching order is deterministic.
func mostFractional(x []float64) int {
	best, bestDist := -1, integerTol
	for i, v := range x {
		dist := math.Abs(v - math.Round(v))
		if dist > bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// stdRow is one standard-form constraint over the free variables.
type stdRow struct {
	coeffs []float64 // over free variables
	slack  float64   // sign of the slack column, 0 for equality rows
	rhs    float64
}

// solveRelaxation solves the LP relaxation max objective.x subject to rows
// and lb <= x <= ub. Variables fixed by their bounds are substituted out;
// the rest are shifted by their lower bounds, inequalities and variable
// bounds get slack columns, dependent equality rows are eliminated, and the
// standard form goes to lp.Simplex.
func solveRelaxation(objective []float64, rows []row, lb, ub []float64) (float64, []float64, error) {
	n := len(objective)

	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if ub[i]-lb[i] > 0 {
			free = append(free, i)
		}
	}
	nf := len(free)

	std := make([]stdRow, 0, len(rows)+nf)
	slacks := 0

	addRow := func(coeffs []float64, slack, rhs float64) error {
		if slack != 0 {
			slacks++
		}
		allZero := true
		for _, c := range coeffs {
			if c != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			// Constant row: decide feasibility here, simplex dislikes
			// zero rows.
			if slack != 0 {
				slacks--
			}
			switch {
			case slack == 0 && math.Abs(rhs) > integerTol:
				return lp.ErrInfeasible
			case slack > 0 && rhs < -integerTol:
				return lp.ErrInfeasible
			case slack < 0 && rhs > integerTol:
				return lp.ErrInfeasible
			}
			return nil
		}
		std = append(std, stdRow{coeffs: coeffs, slack: slack, rhs: rhs})
		return nil
	}

	project := func(r row) ([]float64, float64) {
		coeffs := make([]float64, nf)
		base := 0.0
		for i, c := range r.coeffs {
			base += c * lb[i]
		}
		for k, i := range free {
			coeffs[k] = r.coeffs[i]
		}
		return coeffs, base
	}

	for _, r := range rows {
		coeffs, base := project(r)
		var err error
		if r.lo == r.hi {
			err = addRow(coeffs, 0, r.hi-base)
		} else {
			if !math.IsInf(r.hi, 1) {
				err = addRow(coeffs, 1, r.hi-base)
			}
			if err == nil && !math.IsInf(r.lo, -1) {
				err = addRow(coeffs, -1, r.lo-base)
			}
		}
		if err != nil {
			return 0, nil, err
		}
	}
	// One bound row per free variable keeps the shifted value within its
	// width.
	for k, i := range free {
		coeffs := make([]float64, nf)
		coeffs[k] = 1
		if err := addRow(coeffs, 1, ub[i]-lb[i]); err != nil {
			return 0, nil, err
		}
	}

	std, err := reduceEqualities(std, nf)
	if err != nil {
		return 0, nil, err
	}

	shift := 0.0
	for i := 0; i < n; i++ {
		shift += objective[i] * lb[i]
	}

	x := make([]float64, n)
	copy(x, lb)

	if nf == 0 {
		return shift, x, nil
	}

	m := len(std)
	cols := nf + slacks
	a := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	slackCol := nf
	for r, sr := range std {
		sign := 1.0
		if sr.rhs < 0 {
			sign = -1
		}
		for k, c := range sr.coeffs {
			a.Set(r, k, sign*c)
		}
		if sr.slack != 0 {
			a.Set(r, slackCol, sign*sr.slack)
			slackCol++
		}
		b[r] = sign * sr.rhs
	}

	c := make([]float64, cols)
	for k, i := range free {
		c[k] = -objective[i] // simplex minimizes
	}

	optVal, y, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return 0, nil, err
	}

	for k, i := range free {
		x[i] = lb[i] + y[k]
	}
	return shift - optVal, x, nil
}

// reduceEqualities drops linearly dependent equality rows so simplex never
// sees a singular constraint matrix. An exact-size row composed with a full
// set of position equalities is the common redundancy. Inequality rows each
// own a slack column and cannot participate in a dependency; only the
// equality block needs Gaussian elimination. A zeroed-out row with a nonzero
// right-hand side is a contradiction and reports infeasibility.
func reduceEqualities(rows []stdRow, nf int) ([]stdRow, error) {
	const tol = 1e-9

	var eq [][]float64 // coefficients with the rhs appended
	var reduced []stdRow
	for _, r := range rows {
		if r.slack != 0 {
			reduced = append(reduced, r)
			continue
		}
		augmented := make([]float64, nf+1)
		copy(augmented, r.coeffs)
		augmented[nf] = r.rhs
		eq = append(eq, augmented)
	}
	if len(eq) <= 1 {
		return rows, nil
	}

	rank := 0
	for col := 0; col < nf && rank < len(eq); col++ {
		pivot, largest := -1, tol
		for i := rank; i < len(eq); i++ {
			if v := math.Abs(eq[i][col]); v > largest {
				pivot, largest = i, v
			}
		}
		if pivot < 0 {
			continue
		}
		eq[rank], eq[pivot] = eq[pivot], eq[rank]
		for i := rank + 1; i < len(eq); i++ {
			factor := eq[i][col] / eq[rank][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= nf; j++ {
				eq[i][j] -= factor * eq[rank][j]
			}
		}
		rank++
	}

	independent := make([]stdRow, 0, rank)
	for i, augmented := range eq {
		if i < rank {
			independent = append(independent, stdRow{coeffs: augmented[:nf], rhs: augmented[nf]})
			continue
		}
		if math.Abs(augmented[nf]) > integerTol {
			return nil, lp.ErrInfeasible
		}
	}
	return append(independent, reduced...), nil
}
