package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const bootstrapPayload = `{
	"elements": [
		{"id": 1, "web_name": "Sørloth", "element_type": 4, "team": 1, "now_cost": 68,
		 "ict_index": "11.4", "selected_by_percent": "8.3", "news": "", "status": "a"},
		{"id": 2, "web_name": "Saka", "element_type": 3, "team": 2, "now_cost": 102,
		 "ict_index": "15.0", "selected_by_percent": "51.0",
		 "news": "Knock - 75% chance of playing", "status": "d"}
	],
	"teams": [
		{"id": 1, "short_name": "WOL"},
		{"id": 2, "short_name": "ARS"}
	],
	"element_types": [
		{"id": 1, "singular_name_short": "GKP"},
		{"id": 2, "singular_name_short": "DEF"},
		{"id": 3, "singular_name_short": "MID"},
		{"id": 4, "singular_name_short": "FWD"}
	]
}`

const fixturesPayload = `[
	{"id": 3, "kickoff_time": null, "started": false,
	 "team_h": 1, "team_a": 2, "team_h_difficulty": 3, "team_a_difficulty": 3},
	{"id": 2, "kickoff_time": "2026-09-05T14:00:00Z", "started": false,
	 "team_h": 2, "team_a": 1, "team_h_difficulty": 2, "team_a_difficulty": 4},
	{"id": 1, "kickoff_time": "2026-08-29T14:00:00Z", "started": false,
	 "team_h": 1, "team_a": 2, "team_h_difficulty": 4, "team_a_difficulty": 2}
]`

func newTestFPLClient(t *testing.T, handler http.Handler) (*FPLClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewFPLClient(FPLOptions{Timeout: 5 * time.Second, RequestsPerSec: 1000}, testLogger())
	require.NoError(t, err)
	c.baseURL = srv.URL
	return c, srv
}

func TestFPLClient_Players(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bootstrap-static/", r.URL.Path)
		io.WriteString(w, bootstrapPayload)
	}))

	players, err := c.Players(context.Background())
	require.NoError(t, err)
	require.Len(t, players, 2)

	assert.Equal(t, "Sorloth", players[0].Name, "diacritics folded to ASCII")
	assert.Equal(t, 68, players[0].BuyPrice)
	assert.InDelta(t, 11.4, players[0].QualityIndex, 1e-9)
	assert.True(t, players[0].IsFullyAvailable)

	assert.False(t, players[1].IsFullyAvailable)
	assert.Equal(t, "Knock - 75% chance of playing", players[1].News)
	assert.InDelta(t, 51.0, players[1].SelectedByPercent, 1e-9)
}

func TestFPLClient_ClubsAndPositions(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bootstrapPayload)
	}))

	clubs, err := c.Clubs(context.Background())
	require.NoError(t, err)
	require.Len(t, clubs, 2)
	assert.Equal(t, "WOL", clubs[0].Name)

	positions, err := c.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 4)
	assert.Equal(t, "MID", positions[2].Name)
}

func TestFPLClient_FixturesSortedWithUnscheduledLast(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/fixtures/", r.URL.Path)
		io.WriteString(w, fixturesPayload)
	}))

	fixtures, err := c.Fixtures(context.Background())
	require.NoError(t, err)
	require.Len(t, fixtures, 3)

	assert.Equal(t, 1, fixtures[0].ID)
	assert.Equal(t, 2, fixtures[1].ID)
	assert.Equal(t, 3, fixtures[2].ID, "unscheduled fixture sorts last")
	assert.True(t, fixtures[2].KickoffTime.IsZero())

	assert.Equal(t, map[int]int{1: 4, 2: 2}, fixtures[0].Difficulties)
}

func TestFPLClient_PageCacheMemoizes(t *testing.T) {
	var hits int64
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		io.WriteString(w, bootstrapPayload)
	}))

	_, err := c.Players(context.Background())
	require.NoError(t, err)
	_, err = c.Clubs(context.Background())
	require.NoError(t, err)
	_, err = c.Positions(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&hits), "bootstrap fetched once")
}

func TestFPLClient_RetriesOnServerError(t *testing.T) {
	var hits int64
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, bootstrapPayload)
	}))

	players, err := c.Players(context.Background())
	require.NoError(t, err)
	assert.Len(t, players, 2)
	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestFPLClient_SquadEndpointsNeedCredentials(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{}")
	}))

	_, err := c.Picks(context.Background())
	assert.Error(t, err)
	_, err = c.Bank(context.Background())
	assert.Error(t, err)
}

func TestFPLClient_MyTeam(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/me/":
			io.WriteString(w, `{"player": {"entry": 42}}`)
		case "/api/my-team/42/":
			io.WriteString(w, `{
				"picks": [{"element": 7, "selling_price": 55}],
				"transfers": {"bank": 23, "limit": 2, "made": 1}
			}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	c.cookie = "pl_profile=abc"

	picks, err := c.Picks(context.Background())
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, 7, picks[0].PlayerID)
	assert.Equal(t, 55, picks[0].SellPrice)

	bank, err := c.Bank(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 23, bank)

	free, err := c.FreeTransfers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, free)
}

func TestFPLClient_UnlimitedTransfers(t *testing.T) {
	c, _ := newTestFPLClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/me/":
			io.WriteString(w, `{"player": {"entry": 42}}`)
		default:
			io.WriteString(w, `{"picks": [], "transfers": {"bank": 0, "limit": null, "made": 0}}`)
		}
	}))
	c.cookie = "pl_profile=abc"

	free, err := c.FreeTransfers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, free, "no limit caps at squad size")
}

func TestRotoWireClient_Projections(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		io.WriteString(w, `[
			{"player": "Mohamed Salah", "team": "Liverpool", "opp": "CHE",
			 "minutes": "90", "goals": "0.62", "assists": "0.35", "cleansheet": "0.3",
			 "saves": "0", "goalsconc": "1.1", "yellowcard": "0.08", "redcard": "0.01"}
		]`)
	}))
	defer srv.Close()

	c, err := NewRotoWireClient(RotoWireOptions{Timeout: 5 * time.Second}, testLogger())
	require.NoError(t, err)
	c.baseURL = srv.URL

	projections, err := c.Projections(context.Background(), "season")
	require.NoError(t, err)
	require.Len(t, projections, 1)

	assert.Contains(t, gotPath, "type=season")
	p := projections[0]
	assert.Equal(t, "Mohamed Salah", p.Name)
	assert.Equal(t, "Liverpool", p.Club)
	assert.Equal(t, "CHE", p.Opponent)
	assert.InDelta(t, 0.62, p.Goals, 1e-9)
	assert.InDelta(t, 1.1, p.GoalsConceded, 1e-9)
}

func TestParseFloat(t *testing.T) {
	assert.InDelta(t, 8.5, parseFloat("8.5"), 1e-9)
	assert.InDelta(t, 8.5, parseFloat(" 8.5 "), 1e-9)
	assert.Zero(t, parseFloat(""))
	assert.Zero(t, parseFloat("n/a"))
}

func TestASCIIFold(t *testing.T) {
	assert.Equal(t, "Sorloth", asciiFold("Sørloth"))
	assert.Equal(t, "Odegaard", asciiFold("Ødegaard"))
	assert.Equal(t, "Saed", asciiFold("Sáéd"))
	assert.Equal(t, "Plain", asciiFold("Plain"))
}
