package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fpl-optimizer/internal/api/handlers"
	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/scout"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/pkg/config"
)

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, pool *services.PoolService, players *services.PlayerService, sc *scout.Scout, cache fpl.CacheProvider, cfg *config.Config) {
	playerHandler := handlers.NewPlayerHandler(pool, players, cache)
	optimizerHandler := handlers.NewOptimizerHandler(pool, sc, cfg)

	// Population endpoints
	group.GET("/players", playerHandler.GetPlayers)
	group.GET("/clubs", playerHandler.GetClubs)

	// Decision endpoints
	group.POST("/draft", optimizerHandler.Draft)
	group.POST("/lineup", optimizerHandler.Lineup)
	group.POST("/transfers", optimizerHandler.Transfers)
}
