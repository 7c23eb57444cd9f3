package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crossvenue/arb/internal/app"
	"github.com/crossvenue/arb/pkg/config"
	"github.com/crossvenue/arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage engine",
	Long: `Starts the engine, which will:
1. Refresh quotes for every verified pair on each scan tick
2. Evaluate combined prices against the arbitrage threshold
3. Execute hedged order pairs, harder leg first
4. Unwind any unhedged residual within the slippage ceiling

Pairs are supplied with repeated --pair flags, formatted as
<venue-a-market>=<venue-b-market>.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayP("pair", "p", nil, "Verified pair as <venue-a-market>=<venue-b-market> (repeatable)")
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	rawPairs, _ := cmd.Flags().GetStringArray("pair")
	seeds, err := parsePairSeeds(rawPairs, cfg)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, logger, &app.Options{Pairs: seeds})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}

func parsePairSeeds(raw []string, cfg *config.Config) ([]app.PairSeed, error) {
	seeds := make([]app.PairSeed, 0, len(raw))
	for _, entry := range raw {
		marketA, marketB, ok := strings.Cut(entry, "=")
		if !ok || marketA == "" || marketB == "" {
			return nil, fmt.Errorf("invalid --pair %q, want <venue-a-market>=<venue-b-market>", entry)
		}
		seeds = append(seeds, app.PairSeed{
			VenueA: types.MarketRef{Venue: types.Venue(cfg.VenueA.Name), MarketID: marketA},
			VenueB: types.MarketRef{Venue: types.Venue(cfg.VenueB.Name), MarketID: marketB},
			Notes:  "seeded via --pair flag",
		})
	}
	return seeds, nil
}
