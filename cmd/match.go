package cmd

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/crossvenue/arb/internal/pairs"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	matchThreshold int
	matchWindow    time.Duration

	matchCmd = &cobra.Command{
		Use:   "match <venue-a-events.json> <venue-b-events.json>",
		Short: "Suggest candidate pairs from two event listings",
		Long: `Reads two JSON event listings (one per venue) and prints candidate
pairs ranked by title similarity. Candidates are suggestions only: a pair
trades only after a human approves it and passes it to run via --pair.

Each file holds an array of events:
  [{"venue": "kalshi", "market_id": "FED-25MAR", "title": "...", "close_time": "2026-03-18T18:00:00Z"}]`,
		Args: cobra.ExactArgs(2),
		RunE: runMatch,
	}
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().IntVar(&matchThreshold, "threshold", 75, "Minimum title similarity (0-100)")
	matchCmd.Flags().DurationVar(&matchWindow, "window", 24*time.Hour, "Maximum close-time difference")
}

type eventFile struct {
	Venue     string    `json:"venue"`
	MarketID  string    `json:"market_id"`
	Title     string    `json:"title"`
	CloseTime time.Time `json:"close_time"`
}

func runMatch(_ *cobra.Command, args []string) error {
	eventsA, err := loadEvents(args[0])
	if err != nil {
		return err
	}
	eventsB, err := loadEvents(args[1])
	if err != nil {
		return err
	}

	matcher := pairs.NewMatcher(matchThreshold, matchWindow)
	candidates := matcher.Suggest(eventsA, eventsB)

	if len(candidates) == 0 {
		fmt.Println("no candidates above threshold")
		return nil
	}

	for _, c := range candidates {
		fmt.Printf("%3d%%  %-30s  %-30s  close-diff %s\n",
			c.Similarity, c.A.MarketID, c.B.MarketID, c.TimeDiff)
		fmt.Printf("      %q\n      %q\n", c.A.Title, c.B.Title)
	}
	fmt.Printf("\n%d candidate(s); approve with: run --pair <venue-a-market>=<venue-b-market>\n", len(candidates))

	return nil
}

func loadEvents(path string) ([]pairs.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	var raw []eventFile
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse events file %s: %w", path, err)
	}

	events := make([]pairs.Event, 0, len(raw))
	for _, e := range raw {
		events = append(events, pairs.Event{
			Venue:     e.Venue,
			MarketID:  e.MarketID,
			Title:     e.Title,
			CloseTime: e.CloseTime,
		})
	}
	return events, nil
}
