package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fpl-optimizer/internal/fpl"
	"github.com/jstittsworth/fpl-optimizer/internal/providers"
	"github.com/jstittsworth/fpl-optimizer/internal/scout"
	"github.com/jstittsworth/fpl-optimizer/internal/services"
	"github.com/jstittsworth/fpl-optimizer/internal/squad"
	"github.com/jstittsworth/fpl-optimizer/pkg/config"
)

func main() {
	mode := flag.String("mode", "lineup", "decision to run: draft, lineup, or transfers")
	budget := flag.Int("budget", 0, "draft budget in price tenths (default from config)")
	freeTransfers := flag.Int("free-transfers", -1, "override the feed's free transfer count")
	model := flag.String("model", "", "score model: projection, quality, or ownership")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logger := logrus.StandardLogger()

	scoreModel, err := squad.ParseScoreModel(cfg.ScoreModel)
	if err != nil {
		logrus.Fatalf("Invalid score model: %v", err)
	}
	if *model != "" {
		if scoreModel, err = squad.ParseScoreModel(*model); err != nil {
			logrus.Fatalf("Invalid score model: %v", err)
		}
	}

	playerService, err := buildPlayerService(cfg, scoreModel, logger)
	if err != nil {
		logrus.Fatalf("Failed to initialize feeds: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	players, err := loadPlayers(ctx, playerService, scoreModel)
	if err != nil {
		logrus.Fatalf("Failed to load players: %v", err)
	}

	solveTimeout := time.Duration(cfg.SolverTimeout) * time.Second
	switch *mode {
	case "draft":
		runDraft(ctx, players, cfg, *budget, scoreModel)
	case "lineup":
		runLineup(ctx, players, scoreModel)
	case "transfers":
		runTransfers(ctx, players, playerService, cfg, *freeTransfers, scoreModel, solveTimeout, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}
}

func buildPlayerService(cfg *config.Config, model squad.ScoreModel, logger *logrus.Logger) (*services.PlayerService, error) {
	fplClient, err := providers.NewFPLClient(providers.FPLOptions{
		Email:            cfg.FPLEmail,
		Password:         cfg.FPLPassword,
		Timeout:          cfg.ExternalAPITimeout,
		RequestsPerSec:   cfg.FPLRateLimit,
		BreakerThreshold: uint32(cfg.CircuitBreakerThreshold),
	}, logger)
	if err != nil {
		return nil, err
	}

	if model.NeedsProjections() {
		if !cfg.HasProjectionFeed() {
			return nil, fmt.Errorf("projection scoring requires RotoWire credentials")
		}
		projectionClient, err := providers.NewRotoWireClient(providers.RotoWireOptions{
			Username:         cfg.RotoWireUsername,
			Password:         cfg.RotoWirePassword,
			Timeout:          cfg.ExternalAPITimeout,
			BreakerThreshold: uint32(cfg.CircuitBreakerThreshold),
		}, logger)
		if err != nil {
			return nil, err
		}
		return services.NewPlayerService(fplClient, projectionClient, logger, cfg.FixtureLookahead), nil
	}

	return services.NewPlayerService(fplClient, nil, logger, cfg.FixtureLookahead), nil
}

func loadPlayers(ctx context.Context, playerService *services.PlayerService, model squad.ScoreModel) ([]fpl.Player, error) {
	if model.NeedsProjections() {
		return playerService.PlayersWithProjections(ctx, fpl.ProjectionSeason)
	}
	return playerService.Players(ctx)
}

func runDraft(ctx context.Context, players []fpl.Player, cfg *config.Config, budgetOverride int, model squad.ScoreModel) {
	draftCfg := squad.DraftConfig{Budget: cfg.Budget, ClubQuota: cfg.ClubQuota}
	if budgetOverride > 0 {
		draftCfg.Budget = budgetOverride
	}
	selected, err := squad.Draft(ctx, players, draftCfg, model.SeasonObjective())
	if err != nil {
		logrus.Fatalf("Draft failed: %v", err)
	}
	printSquad(selected, model.SeasonObjective())
	fmt.Printf("Total price: %.1f\n", float64(totalPrice(selected))/10)
}

func runLineup(ctx context.Context, players []fpl.Player, model squad.ScoreModel) {
	var owned []fpl.Player
	for _, p := range players {
		if p.IsOwned {
			owned = append(owned, p)
		}
	}
	if len(owned) == 0 {
		logrus.Fatal("The ownership feed returned no current squad")
	}

	lineup, err := squad.PickLineup(ctx, owned, model.MatchdayObjective())
	if err != nil {
		logrus.Fatalf("Lineup selection failed: %v", err)
	}

	fmt.Printf("Lineup (%s)\n\n", lineup.Formation())
	w := newTable()
	fmt.Fprintln(w, "POS\tCLUB\tPLAYER\tOPP\tAVAIL\tSCORE")
	score := model.MatchdayObjective()
	for _, position := range fpl.Positions {
		for _, p := range lineup.Starters {
			if p.Position != position {
				continue
			}
			role := ""
			if p.ID == lineup.Captain.ID {
				role = " (C)"
			} else if p.ID == lineup.ViceCaptain.ID {
				role = " (V)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s%s\t%s\t%.2f\t%.2f\n",
				p.Position, p.Club, p.Name, role, p.NextOpponent, p.Availability, score(p))
		}
	}
	w.Flush()

	fmt.Println("\nBench")
	w = newTable()
	fmt.Fprintln(w, "POS\tCLUB\tPLAYER\tOPP\tAVAIL\tSCORE")
	for _, p := range lineup.Bench {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
			p.Position, p.Club, p.Name, p.NextOpponent, p.Availability, score(p))
	}
	w.Flush()
}

func runTransfers(ctx context.Context, players []fpl.Player, playerService *services.PlayerService, cfg *config.Config, override int, model squad.ScoreModel, solveTimeout time.Duration, logger *logrus.Logger) {
	bank, err := playerService.Bank(ctx)
	if err != nil {
		logrus.Fatalf("Failed to fetch bank: %v", err)
	}
	freeTransfers := override
	if freeTransfers < 0 {
		if freeTransfers, err = playerService.FreeTransfers(ctx); err != nil {
			logrus.Fatalf("Failed to fetch free transfers: %v", err)
		}
	}

	sc := scout.New(logger, cfg.ScoutWorkers, solveTimeout)
	recommendation, err := sc.Search(ctx, players, bank, freeTransfers, model.SeasonObjective())
	if err != nil {
		logrus.Fatalf("Transfer search failed: %v", err)
	}
	if recommendation == nil {
		fmt.Println("No transfer recommended.")
		return
	}

	score := model.SeasonObjective()
	fmt.Printf("Best transfer set (net gain %.2f, %d combinations evaluated, %d skipped)\n\n",
		recommendation.NetGain, recommendation.Evaluated, recommendation.Skipped)
	w := newTable()
	fmt.Fprintln(w, "\tPOS\tCLUB\tPLAYER\tPRICE\tSCORE")
	for _, p := range recommendation.Out {
		fmt.Fprintf(w, "OUT\t%s\t%s\t%s\t%.1f\t%.2f\n", p.Position, p.Club, p.Name, float64(p.SellPrice)/10, score(p))
	}
	for _, p := range recommendation.In {
		fmt.Fprintf(w, "IN\t%s\t%s\t%s\t%.1f\t%.2f\n", p.Position, p.Club, p.Name, float64(p.BuyPrice)/10, score(p))
	}
	w.Flush()
}

func printSquad(players []fpl.Player, score func(fpl.Player) float64) {
	for _, position := range fpl.Positions {
		fmt.Println(position)
		w := newTable()
		fmt.Fprintln(w, "CLUB\tPLAYER\tPRICE\tSCORE")
		for _, p := range players {
			if p.Position != position {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%.2f\n", p.Club, p.Name, float64(p.BuyPrice)/10, score(p))
		}
		w.Flush()
		fmt.Println()
	}
}

func totalPrice(players []fpl.Player) int {
	total := 0
	for _, p := range players {
		total += p.BuyPrice
	}
	return total
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}
