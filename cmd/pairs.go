package cmd

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	engineAddr string

	pairsCmd = &cobra.Command{
		Use:   "pairs",
		Short: "List verified pairs on a running engine",
		RunE:  runPairs,
	}

	positionsCmd = &cobra.Command{
		Use:   "positions",
		Short: "Show open positions and PnL on a running engine",
		RunE:  runPositions,
	}

	pauseCmd = &cobra.Command{
		Use:   "pause <pair-id>",
		Short: "Pause a verified pair on a running engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return setPairStatus(args[0], "pause")
		},
	}

	resumeCmd = &cobra.Command{
		Use:   "resume <pair-id>",
		Short: "Resume a paused pair on a running engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return setPairStatus(args[0], "resume")
		},
	}
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pairsCmd)
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)

	for _, c := range []*cobra.Command{pairsCmd, positionsCmd, pauseCmd, resumeCmd} {
		c.Flags().StringVar(&engineAddr, "addr", "http://localhost:8080", "Engine HTTP address")
	}
}

func runPairs(_ *cobra.Command, _ []string) error {
	var body struct {
		Pairs []types.VerifiedPair `json:"pairs"`
	}
	err := getJSON(engineAddr+"/api/pairs", &body)
	if err != nil {
		return err
	}

	if len(body.Pairs) == 0 {
		fmt.Println("no verified pairs")
		return nil
	}

	for _, p := range body.Pairs {
		cooldown := ""
		if time.Now().Before(p.CooldownUntil) {
			cooldown = fmt.Sprintf("  cooldown until %s", p.CooldownUntil.Format(time.RFC3339))
		}
		fmt.Printf("%s  %-8s  %s/%s = %s/%s%s\n",
			p.ID, p.Status,
			p.VenueA.Venue, p.VenueA.MarketID,
			p.VenueB.Venue, p.VenueB.MarketID,
			cooldown)
	}

	return nil
}

func runPositions(_ *cobra.Command, _ []string) error {
	var body struct {
		Positions     []ledger.Position `json:"positions"`
		RealizedPnl   float64           `json:"realized_pnl"`
		UnrealizedPnl float64           `json:"unrealized_pnl"`
	}
	err := getJSON(engineAddr+"/api/positions", &body)
	if err != nil {
		return err
	}

	for _, p := range body.Positions {
		fmt.Printf("%-12s %-20s net %10.2f  avg %6.4f  realized %10.2f  unrealized %10.2f\n",
			p.Venue, p.MarketID, p.NetSize, p.AvgCost, p.RealizedPnl, p.UnrealizedPnl)
	}
	fmt.Printf("\ntotal realized %.2f  unrealized %.2f\n", body.RealizedPnl, body.UnrealizedPnl)

	return nil
}

func setPairStatus(pairID, action string) error {
	url := fmt.Sprintf("%s/api/pairs/%s/%s", engineAddr, pairID, action)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("reach engine at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned %d for %s", resp.StatusCode, url)
	}

	var body struct {
		PairID string `json:"pair_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("%s  %s\n", body.PairID, body.Status)
	return nil
}

func getJSON(url string, out interface{}) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("reach engine at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned %d for %s", resp.StatusCode, url)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
