package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
)

const rotoWireBaseURL = "https://www.rotowire.com"

// RotoWireOptions configures the projection-feed client.
type RotoWireOptions struct {
	Username         string
	Password         string
	Timeout          time.Duration
	BreakerThreshold uint32
}

// RotoWireClient is the projection-feed adapter.
type RotoWireClient struct {
	httpClient *http.Client
	logger     *logrus.Logger
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	cookie     string

	mu        sync.Mutex
	pageCache map[string]json.RawMessage
}

func NewRotoWireClient(opts RotoWireOptions, logger *logrus.Logger) (*RotoWireClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = 5
	}

	c := &RotoWireClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
		breaker:    newBreaker("rotowire", opts.BreakerThreshold, logger),
		baseURL:    rotoWireBaseURL,
		pageCache:  make(map[string]json.RawMessage),
	}

	if opts.Username != "" {
		cookie, err := login(c.httpClient, rotoWireBaseURL+"/users/login.php", url.Values{
			"username": {opts.Username},
			"password": {opts.Password},
		})
		if err != nil {
			return nil, fmt.Errorf("rotowire login: %w", err)
		}
		c.cookie = cookie
	}

	return c, nil
}

// rotoWireProjection mirrors the provider's table payload: every numeric
// column arrives as a string.
type rotoWireProjection struct {
	Player     string `json:"player"`
	Team       string `json:"team"`
	Opponent   string `json:"opp"`
	Minutes    string `json:"minutes"`
	Goals      string `json:"goals"`
	Assists    string `json:"assists"`
	CleanSheet string `json:"cleansheet"`
	Saves      string `json:"saves"`
	GoalsConc  string `json:"goalsconc"`
	YellowCard string `json:"yellowcard"`
	RedCard    string `json:"redcard"`
}

func (c *RotoWireClient) Projections(ctx context.Context, period fpl.ProjectionPeriod) ([]fpl.Projection, error) {
	path := fmt.Sprintf("/soccer/tables/projections.php?position=All&league=EPL&type=%s&myLeagueID=0", period)

	c.mu.Lock()
	raw, cached := c.pageCache[path]
	c.mu.Unlock()
	if !cached {
		body, err := c.breaker.Execute(func() (interface{}, error) {
			return getWithRetry(ctx, c.httpClient, c.baseURL+path, c.cookie, c.logger)
		})
		if err != nil {
			return nil, fmt.Errorf("rotowire: fetch projections: %w", err)
		}
		raw = body.(json.RawMessage)
		c.mu.Lock()
		c.pageCache[path] = raw
		c.mu.Unlock()
	}

	var rows []rotoWireProjection
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("rotowire: decode projections: %w", err)
	}

	projections := make([]fpl.Projection, 0, len(rows))
	for _, row := range rows {
		projections = append(projections, fpl.Projection{
			Name:          asciiFold(row.Player),
			Club:          row.Team,
			Opponent:      row.Opponent,
			Minutes:       parseFloat(row.Minutes),
			Goals:         parseFloat(row.Goals),
			Assists:       parseFloat(row.Assists),
			CleanSheets:   parseFloat(row.CleanSheet),
			Saves:         parseFloat(row.Saves),
			GoalsConceded: parseFloat(row.GoalsConc),
			YellowCards:   parseFloat(row.YellowCard),
			RedCards:      parseFloat(row.RedCard),
		})
	}
	return projections, nil
}
