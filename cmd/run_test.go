package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossvenue/arb/pkg/config"
	"github.com/crossvenue/arb/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		VenueA: config.VenueConfig{Name: "kalshi"},
		VenueB: config.VenueConfig{Name: "polymarket"},
	}
}

func TestParsePairSeeds(t *testing.T) {
	seeds, err := parsePairSeeds([]string{"FED-25MAR=0xabc", "NBA-FIN=0xdef"}, testConfig())
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, types.Venue("kalshi"), seeds[0].VenueA.Venue)
	assert.Equal(t, "FED-25MAR", seeds[0].VenueA.MarketID)
	assert.Equal(t, types.Venue("polymarket"), seeds[0].VenueB.Venue)
	assert.Equal(t, "0xabc", seeds[0].VenueB.MarketID)
}

func TestParsePairSeeds_InvalidFormat(t *testing.T) {
	for _, entry := range []string{"no-separator", "=0xabc", "FED-25MAR="} {
		_, err := parsePairSeeds([]string{entry}, testConfig())
		assert.Error(t, err, "entry %q should be rejected", entry)
	}
}

func TestParsePairSeeds_Empty(t *testing.T) {
	seeds, err := parsePairSeeds(nil, testConfig())
	require.NoError(t, err)
	assert.Empty(t, seeds)
}
