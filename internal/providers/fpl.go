// Package providers implements the feed adapters: the FPL ownership feed and
// the RotoWire projection feed. Both carry the same resilience stack: a
// circuit breaker, bounded retries with exponential backoff, and a
// per-instance page cache keyed by request path.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
)

const (
	fplBaseURL  = "https://fantasy.premierleague.com"
	fplLoginURL = "https://users.premierleague.com/accounts/login/"

	requestAttempts = 3
)

// FPLOptions configures the ownership-feed client.
type FPLOptions struct {
	Email            string
	Password         string
	Timeout          time.Duration
	RequestsPerSec   int
	BreakerThreshold uint32
}

// FPLClient is the ownership-feed adapter. One client serves one run; its
// page cache memoizes repeated endpoint hits and needs no invalidation.
type FPLClient struct {
	httpClient *http.Client
	logger     *logrus.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	cookie     string

	mu        sync.Mutex
	pageCache map[string]json.RawMessage
}

func NewFPLClient(opts FPLOptions, logger *logrus.Logger) (*FPLClient, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 10
	}
	if opts.BreakerThreshold == 0 {
		opts.BreakerThreshold = 5
	}

	c := &FPLClient{
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		breaker:    newBreaker("fpl", opts.BreakerThreshold, logger),
		baseURL:    fplBaseURL,
		pageCache:  make(map[string]json.RawMessage),
	}

	if opts.Email != "" {
		cookie, err := login(c.httpClient, fplLoginURL, url.Values{
			"login":        {opts.Email},
			"password":     {opts.Password},
			"app":          {"plfpl-web"},
			"redirect_uri": {fplBaseURL + "/"},
		})
		if err != nil {
			return nil, fmt.Errorf("fpl login: %w", err)
		}
		c.cookie = cookie
	}

	return c, nil
}

// FPL API response structures
type fplBootstrapResponse struct {
	Elements []struct {
		ID                int    `json:"id"`
		WebName           string `json:"web_name"`
		ElementType       int    `json:"element_type"`
		Team              int    `json:"team"`
		NowCost           int    `json:"now_cost"`
		ICTIndex          string `json:"ict_index"`
		SelectedByPercent string `json:"selected_by_percent"`
		News              string `json:"news"`
		Status            string `json:"status"`
	} `json:"elements"`
	Teams []struct {
		ID        int    `json:"id"`
		ShortName string `json:"short_name"`
	} `json:"teams"`
	ElementTypes []struct {
		ID                int    `json:"id"`
		SingularNameShort string `json:"singular_name_short"`
	} `json:"element_types"`
}

type fplFixture struct {
	ID             int    `json:"id"`
	KickoffTime    string `json:"kickoff_time"`
	Started        bool   `json:"started"`
	TeamH          int    `json:"team_h"`
	TeamA          int    `json:"team_a"`
	TeamHDifficult int    `json:"team_h_difficulty"`
	TeamADifficult int    `json:"team_a_difficulty"`
}

type fplMyTeamResponse struct {
	Picks []struct {
		Element      int `json:"element"`
		SellingPrice int `json:"selling_price"`
	} `json:"picks"`
	Transfers struct {
		Bank  int  `json:"bank"`
		Limit *int `json:"limit"`
		Made  int  `json:"made"`
	} `json:"transfers"`
}

func (c *FPLClient) Players(ctx context.Context) ([]fpl.PlayerRecord, error) {
	data, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	players := make([]fpl.PlayerRecord, 0, len(data.Elements))
	for _, e := range data.Elements {
		players = append(players, fpl.PlayerRecord{
			ID:                e.ID,
			Name:              asciiFold(e.WebName),
			PositionID:        e.ElementType,
			ClubID:            e.Team,
			BuyPrice:          e.NowCost,
			QualityIndex:      parseFloat(e.ICTIndex),
			SelectedByPercent: parseFloat(e.SelectedByPercent),
			News:              e.News,
			IsFullyAvailable:  e.Status == "a",
		})
	}
	return players, nil
}

func (c *FPLClient) Clubs(ctx context.Context) ([]fpl.ClubRecord, error) {
	data, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	clubs := make([]fpl.ClubRecord, 0, len(data.Teams))
	for _, t := range data.Teams {
		clubs = append(clubs, fpl.ClubRecord{ID: t.ID, Name: t.ShortName})
	}
	return clubs, nil
}

func (c *FPLClient) Positions(ctx context.Context) ([]fpl.PositionRecord, error) {
	data, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	positions := make([]fpl.PositionRecord, 0, len(data.ElementTypes))
	for _, t := range data.ElementTypes {
		positions = append(positions, fpl.PositionRecord{ID: t.ID, Name: t.SingularNameShort})
	}
	return positions, nil
}

func (c *FPLClient) Fixtures(ctx context.Context) ([]fpl.FixtureRecord, error) {
	raw, err := c.fetch(ctx, "/api/fixtures/")
	if err != nil {
		return nil, err
	}
	var response []fplFixture
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	fixtures := make([]fpl.FixtureRecord, 0, len(response))
	for _, f := range response {
		kickoff, err := time.Parse(time.RFC3339, f.KickoffTime)
		if err != nil {
			// Unscheduled fixtures have no kickoff yet; leave them last.
			kickoff = time.Time{}
		}
		fixtures = append(fixtures, fpl.FixtureRecord{
			ID:          f.ID,
			KickoffTime: kickoff,
			Started:     f.Started,
			Difficulties: map[int]int{
				f.TeamH: f.TeamHDifficult,
				f.TeamA: f.TeamADifficult,
			},
		})
	}
	sort.SliceStable(fixtures, func(i, j int) bool {
		if fixtures[i].KickoffTime.IsZero() != fixtures[j].KickoffTime.IsZero() {
			return !fixtures[i].KickoffTime.IsZero()
		}
		return fixtures[i].KickoffTime.Before(fixtures[j].KickoffTime)
	})
	return fixtures, nil
}

func (c *FPLClient) Picks(ctx context.Context) ([]fpl.PickRecord, error) {
	team, err := c.myTeam(ctx)
	if err != nil {
		return nil, err
	}
	picks := make([]fpl.PickRecord, 0, len(team.Picks))
	for _, p := range team.Picks {
		picks = append(picks, fpl.PickRecord{PlayerID: p.Element, SellPrice: p.SellingPrice})
	}
	return picks, nil
}

func (c *FPLClient) Bank(ctx context.Context) (int, error) {
	team, err := c.myTeam(ctx)
	if err != nil {
		return 0, err
	}
	return team.Transfers.Bank, nil
}

func (c *FPLClient) FreeTransfers(ctx context.Context) (int, error) {
	team, err := c.myTeam(ctx)
	if err != nil {
		return 0, err
	}
	if team.Transfers.Limit == nil {
		// Unlimited transfers (pre-season or wildcard); cap at squad size.
		return 15, nil
	}
	free := *team.Transfers.Limit - team.Transfers.Made
	if free < 0 {
		free = 0
	}
	return free, nil
}

func (c *FPLClient) bootstrap(ctx context.Context) (*fplBootstrapResponse, error) {
	raw, err := c.fetch(ctx, "/api/bootstrap-static/")
	if err != nil {
		return nil, err
	}
	var data fplBootstrapResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode bootstrap: %w", err)
	}
	return &data, nil
}

func (c *FPLClient) myTeam(ctx context.Context) (*fplMyTeamResponse, error) {
	if c.cookie == "" {
		return nil, fmt.Errorf("fpl: squad endpoints need credentials")
	}
	raw, err := c.fetch(ctx, "/api/me/")
	if err != nil {
		return nil, err
	}
	var me struct {
		Player struct {
			Entry int `json:"entry"`
		} `json:"player"`
	}
	if err := json.Unmarshal(raw, &me); err != nil {
		return nil, fmt.Errorf("decode me: %w", err)
	}

	raw, err = c.fetch(ctx, fmt.Sprintf("/api/my-team/%d/", me.Player.Entry))
	if err != nil {
		return nil, err
	}
	var team fplMyTeamResponse
	if err := json.Unmarshal(raw, &team); err != nil {
		return nil, fmt.Errorf("decode my-team: %w", err)
	}
	return &team, nil
}

// fetch memoizes GETs by path for the client's lifetime.
func (c *FPLClient) fetch(ctx context.Context, path string) (json.RawMessage, error) {
	c.mu.Lock()
	if cached, ok := c.pageCache[path]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fpl: rate limit wait: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return getWithRetry(ctx, c.httpClient, c.baseURL+path, c.cookie, c.logger)
	})
	if err != nil {
		return nil, fmt.Errorf("fpl: fetch %s: %w", path, err)
	}

	raw := body.(json.RawMessage)
	c.mu.Lock()
	c.pageCache[path] = raw
	c.mu.Unlock()
	return raw, nil
}

// getWithRetry performs a GET with exponential backoff, shared by both feed
// clients.
func getWithRetry(ctx context.Context, client *http.Client, url, cookie string, logger *logrus.Logger) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < requestAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			logger.Warnf("Request failed (attempt %d), waiting %v: %v", attempt, wait, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if cookie != "" {
			req.Header.Set("Cookie", cookie)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}

		var raw json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return raw, nil
	}
	return nil, fmt.Errorf("request failed after retries: %w", lastErr)
}

// login posts the provider's form and flattens the session cookies into a
// header value for later requests.
func login(client *http.Client, loginURL string, form url.Values) (string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", err
	}
	session := &http.Client{Timeout: client.Timeout, Jar: jar}

	resp, err := session.PostForm(loginURL, form)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	target, err := url.Parse(loginURL)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, cookie := range jar.Cookies(target) {
		parts = append(parts, fmt.Sprintf("%s=%s", cookie.Name, cookie.Value))
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no session cookies returned")
	}
	return strings.Join(parts, "; "), nil
}

func newBreaker(name string, threshold uint32, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
