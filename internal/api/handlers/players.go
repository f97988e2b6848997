package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/pkg/utils"
)

const clubsCacheTTL = 30 * time.Minute

type PlayerHandler struct {
	pool    *services.PoolService
	players *services.PlayerService
	cache   fpl.CacheProvider
}

func NewPlayerHandler(pool *services.PoolService, players *services.PlayerService, cache fpl.CacheProvider) *PlayerHandler {
	return &PlayerHandler{pool: pool, players: players, cache: cache}
}

// GetPlayers returns the reconciled player population, optionally filtered
// by position, club, or ownership.
func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	pool, err := h.pool.Snapshot(c.Request.Context())
	if err != nil {
		utils.SendUpstreamError(c, "Failed to load player pool: "+err.Error())
		return
	}

	position := strings.ToUpper(c.Query("position"))
	club := c.Query("club")
	ownedOnly := c.Query("owned") == "true"

	filtered := make([]fpl.Player, 0, len(pool.Players))
	for _, p := range pool.Players {
		if position != "" && string(p.Position) != position {
			continue
		}
		if club != "" && p.Club != club {
			continue
		}
		if ownedOnly && !p.IsOwned {
			continue
		}
		filtered = append(filtered, p)
	}

	utils.SendSuccess(c, gin.H{
		"players":        filtered,
		"bank":           pool.Bank,
		"free_transfers": pool.FreeTransfers,
		"refreshed_at":   pool.RefreshedAt,
	})
}

// GetClubs returns the clubs with their fixture-quality aggregates. Results
// are served cache-aside; the pool refresh invalidates the key.
func (h *PlayerHandler) GetClubs(c *gin.Context) {
	if h.cache != nil {
		var cached []fpl.Club
		if err := h.cache.GetSimple(services.ClubsCacheKey(), &cached); err == nil && len(cached) > 0 {
			utils.SendSuccess(c, cached)
			return
		}
	}

	clubs, err := h.players.Clubs(c.Request.Context())
	if err != nil {
		utils.SendUpstreamError(c, "Failed to load clubs: "+err.Error())
		return
	}
	if h.cache != nil {
		// Best effort; a cache outage never fails the request.
		_ = h.cache.SetSimple(services.ClubsCacheKey(), clubs, clubsCacheTTL)
	}
	utils.SendSuccess(c, clubs)
}
