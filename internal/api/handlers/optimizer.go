package handlers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/optimizer"
	"github.com/jstittsworth/fpl-optimizer/internal/scout"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/internal/squad"
	"github.com/jstittsworth/fpl-optimizer/pkg/config"
	"github.com/jstittsworth/fpl-optimizer/pkg/utils"
)

type OptimizerHandler struct {
	pool   *services.PoolService
	scout  *scout.Scout
	config *config.Config
}

func NewOptimizerHandler(pool *services.PoolService, sc *scout.Scout, cfg *config.Config) *OptimizerHandler {
	return &OptimizerHandler{pool: pool, scout: sc, config: cfg}
}

// Draft selects an optimal initial 15-man squad.
func (h *OptimizerHandler) Draft(c *gin.Context) {
	var req struct {
		Budget     int            `json:"budget" binding:"omitempty,min=0"`
		ClubQuota  int            `json:"club_quota" binding:"omitempty,min=1"`
		ClubLimits map[string]int `json:"club_limits"`
		ScoreModel string         `json:"score_model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	model, ok := h.resolveModel(c, req.ScoreModel)
	if !ok {
		return
	}
	pool, err := h.pool.Snapshot(c.Request.Context())
	if err != nil {
		utils.SendUpstreamError(c, "Failed to load player pool: "+err.Error())
		return
	}

	ctx, cancel := h.solveContext(c)
	defer cancel()
	cfg := squad.DraftConfig{Budget: req.Budget, ClubQuota: req.ClubQuota, ClubLimits: req.ClubLimits}
	if cfg.Budget == 0 {
		cfg.Budget = h.config.Budget
	}
	if cfg.ClubQuota == 0 {
		cfg.ClubQuota = h.config.ClubQuota
	}
	selected, err := squad.Draft(ctx, pool.Players, cfg, model.SeasonObjective())
	if err != nil {
		h.sendSolveError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"squad":       groupByPosition(selected),
		"total_price": totalPrice(selected),
		"score_model": model,
	})
}

// Lineup selects the optimal starting eleven from the owned squad.
func (h *OptimizerHandler) Lineup(c *gin.Context) {
	var req struct {
		ScoreModel string `json:"score_model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	model, ok := h.resolveModel(c, req.ScoreModel)
	if !ok {
		return
	}
	pool, err := h.pool.Snapshot(c.Request.Context())
	if err != nil {
		utils.SendUpstreamError(c, "Failed to load player pool: "+err.Error())
		return
	}

	var owned []fpl.Player
	for _, p := range pool.Players {
		if p.IsOwned {
			owned = append(owned, p)
		}
	}
	if len(owned) == 0 {
		utils.SendValidationError(c, "No owned squad", "the ownership feed returned no current picks")
		return
	}

	ctx, cancel := h.solveContext(c)
	defer cancel()
	lineup, err := squad.PickLineup(ctx, owned, model.MatchdayObjective())
	if err != nil {
		h.sendSolveError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"lineup":      lineup,
		"formation":   lineup.Formation(),
		"score_model": model,
	})
}

// Transfers searches outgoing/incoming swaps up to the transfer allowance.
func (h *OptimizerHandler) Transfers(c *gin.Context) {
	var req struct {
		FreeTransfers *int   `json:"free_transfers" binding:"omitempty"`
		ScoreModel    string `json:"score_model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	model, ok := h.resolveModel(c, req.ScoreModel)
	if !ok {
		return
	}
	pool, err := h.pool.Snapshot(c.Request.Context())
	if err != nil {
		utils.SendUpstreamError(c, "Failed to load player pool: "+err.Error())
		return
	}

	freeTransfers := pool.FreeTransfers
	if req.FreeTransfers != nil {
		if *req.FreeTransfers < 0 {
			utils.SendValidationError(c, "Invalid free_transfers", "must be zero or positive")
			return
		}
		freeTransfers = *req.FreeTransfers
	}

	recommendation, err := h.scout.Search(c.Request.Context(), pool.Players, pool.Bank, freeTransfers, model.SeasonObjective())
	if err != nil {
		utils.SendInternalError(c, "Transfer search failed: "+err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{
		"recommendation": recommendation,
		"free_transfers": freeTransfers,
		"score_model":    model,
	})
}

func (h *OptimizerHandler) resolveModel(c *gin.Context, requested string) (squad.ScoreModel, bool) {
	model := h.pool.Model()
	if requested != "" {
		parsed, err := squad.ParseScoreModel(requested)
		if err != nil {
			utils.SendValidationError(c, "Invalid score model", err.Error())
			return "", false
		}
		if parsed.NeedsProjections() && !h.pool.Model().NeedsProjections() {
			utils.SendValidationError(c, "Projection scoring unavailable",
				"the pool was built without a projection feed")
			return "", false
		}
		model = parsed
	}
	return model, true
}

func (h *OptimizerHandler) solveContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(h.config.SolverTimeout) * time.Second
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (h *OptimizerHandler) sendSolveError(c *gin.Context, err error) {
	if errors.Is(err, optimizer.ErrInfeasible) {
		utils.SendInfeasible(c, "No squad satisfies the requested constraints")
		return
	}
	utils.SendInternalError(c, "Optimization failed: "+err.Error())
}

func groupByPosition(players []fpl.Player) map[fpl.Position][]fpl.Player {
	grouped := make(map[fpl.Position][]fpl.Player, len(fpl.Positions))
	for _, position := range fpl.Positions {
		grouped[position] = []fpl.Player{}
	}
	for _, p := range players {
		grouped[p.Position] = append(grouped[p.Position], p)
	}
	return grouped
}

func totalPrice(players []fpl.Player) int {
	total := 0
	for _, p := range players {
		total += p.BuyPrice
	}
	return total
}
