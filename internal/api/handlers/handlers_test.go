package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/fpl-optimizer/internal/api"
	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/scout"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/internal/squad"
	"github.com/jstittsworth/fpl-optimizer/pkg/config"
	"github.com/jstittsworth/fpl-optimizer/pkg/utils"
)

type stubProvider struct {
	players    []fpl.PlayerRecord
	clubs      []fpl.ClubRecord
	positions  []fpl.PositionRecord
	fixtures   []fpl.FixtureRecord
	picks      []fpl.PickRecord
	bank       int
	transfers  int
	clubsCalls int
}

func (p *stubProvider) Players(ctx context.Context) ([]fpl.PlayerRecord, error) {
	return p.players, nil
}
func (p *stubProvider) Clubs(ctx context.Context) ([]fpl.ClubRecord, error) {
	p.clubsCalls++
	return p.clubs, nil
}
func (p *stubProvider) Positions(ctx context.Context) ([]fpl.PositionRecord, error) {
	return p.positions, nil
}
func (p *stubProvider) Fixtures(ctx context.Context) ([]fpl.FixtureRecord, error) {
	return p.fixtures, nil
}
func (p *stubProvider) Picks(ctx context.Context) ([]fpl.PickRecord, error) { return p.picks, nil }
func (p *stubProvider) Bank(ctx context.Context) (int, error)               { return p.bank, nil }
func (p *stubProvider) FreeTransfers(ctx context.Context) (int, error)      { return p.transfers, nil }

// stubFeed builds a 22-player market with a valid 15-man owned squad.
func stubFeed() *stubProvider {
	counts := map[int]int{1: 3, 2: 7, 3: 7, 4: 5}
	owned := map[int]bool{
		1: true, 2: true,
		4: true, 5: true, 6: true, 7: true, 8: true,
		11: true, 12: true, 13: true, 14: true, 15: true,
		18: true, 19: true, 20: true,
	}

	p := &stubProvider{
		clubs: []fpl.ClubRecord{
			{ID: 1, Name: "ARS"}, {ID: 2, Name: "BOU"}, {ID: 3, Name: "CHE"}, {ID: 4, Name: "EVE"},
			{ID: 5, Name: "FUL"}, {ID: 6, Name: "LIV"}, {ID: 7, Name: "MCI"}, {ID: 8, Name: "TOT"},
		},
		positions: []fpl.PositionRecord{
			{ID: 1, Name: "GKP"}, {ID: 2, Name: "DEF"}, {ID: 3, Name: "MID"}, {ID: 4, Name: "FWD"},
		},
		bank:      15,
		transfers: 1,
	}

	id := 0
	for positionID := 1; positionID <= 4; positionID++ {
		for i := 0; i < counts[positionID]; i++ {
			id++
			p.players = append(p.players, fpl.PlayerRecord{
				ID:                id,
				Name:              fmt.Sprintf("Player %d", id),
				PositionID:        positionID,
				ClubID:            ((id - 1) % 8) + 1,
				BuyPrice:          45 + (id%5)*10,
				QualityIndex:      float64(50 - id),
				SelectedByPercent: float64(id),
				IsFullyAvailable:  true,
			})
			if owned[id] {
				p.picks = append(p.picks, fpl.PickRecord{PlayerID: id, SellPrice: 43 + (id%5)*10})
			}
		}
	}
	return p
}

// memCache is an in-memory fpl.CacheProvider for handler tests.
type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) SetSimple(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memCache) GetSimple(key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		return services.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func newRouter(t *testing.T, provider *stubProvider, cache fpl.CacheProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Budget:        1000,
		ClubQuota:     3,
		SolverTimeout: 20,
		ScoutWorkers:  2,
	}

	players := services.NewPlayerService(provider, nil, logger, 6)
	pool := services.NewPoolService(players, cache, logger, squad.ModelQuality, time.Hour)
	require.NoError(t, pool.Refresh(context.Background()))
	sc := scout.New(logger, cfg.ScoutWorkers, 10*time.Second)

	r := gin.New()
	api.SetupRoutes(r.Group("/api/v1"), pool, players, sc, cache, cfg)
	return r
}

func testRouter(t *testing.T) *gin.Engine {
	return newRouter(t, stubFeed(), nil)
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestGetPlayers(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/players", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["players"], 22)
	assert.EqualValues(t, 15, data["bank"])
	assert.EqualValues(t, 1, data["free_transfers"])
}

func TestGetPlayers_Filters(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/players?position=gkp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Len(t, data["players"], 3)

	w, resp = doRequest(t, r, http.MethodGet, "/api/v1/players?owned=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	assert.Len(t, data["players"], 15)
}

func TestGetClubs(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/clubs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	assert.Len(t, resp.Data, 8)
}

func TestGetClubs_ServedFromCache(t *testing.T) {
	provider := stubFeed()
	r := newRouter(t, provider, newMemCache())
	before := provider.clubsCalls

	w, resp := doRequest(t, r, http.MethodGet, "/api/v1/clubs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 8)

	w, resp = doRequest(t, r, http.MethodGet, "/api/v1/clubs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data, 8)

	// First request fetched the feed and populated the cache; the second
	// never reached the provider.
	assert.Equal(t, before+1, provider.clubsCalls)
}

func TestDraft_EmptyBody(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	grouped := data["squad"].(map[string]interface{})
	total := 0
	for _, players := range grouped {
		total += len(players.([]interface{}))
	}
	assert.Equal(t, squad.SquadSize, total)
	assert.LessOrEqual(t, data["total_price"].(float64), 1000.0)
}

func TestDraft_InfeasibleBudget(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/draft", gin.H{"budget": 100})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, utils.ErrCodeInfeasible, resp.Error.Code)
}

func TestDraft_InvalidScoreModel(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/draft", gin.H{"score_model": "vibes"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestDraft_ProjectionModelUnavailable(t *testing.T) {
	r := testRouter(t)

	// The pool was built with the quality model; projection scoring has no
	// data to work from.
	w, _ := doRequest(t, r, http.MethodPost, "/api/v1/draft", gin.H{"score_model": "projection"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLineup(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/lineup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	lineup := data["lineup"].(map[string]interface{})
	assert.Len(t, lineup["starters"], squad.StartersCount)
	assert.Len(t, lineup["bench"], squad.SquadSize-squad.StartersCount)
	assert.NotEmpty(t, data["formation"])
}

func TestTransfers(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/transfers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 1, data["free_transfers"])
}

func TestTransfers_ZeroAllowance(t *testing.T) {
	r := testRouter(t)

	zero := 0
	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"free_transfers": zero})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Nil(t, data["recommendation"])
}

func TestTransfers_NegativeAllowance(t *testing.T) {
	r := testRouter(t)

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"free_transfers": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}
