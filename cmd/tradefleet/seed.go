package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with a development exchange registry",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	_, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now().UTC()
	exchanges := []*types.Exchange{
		{
			ID:            "NYSE",
			Type:          "equities",
			Timezone:      "America/New_York",
			PreOpenTime:   "04:00",
			PostCloseTime: "16:00",
			Image:         "docker.io/opentrade/exchange-service:latest",
			GRPCPort:      50055,
			Symbols:       []string{"AAPL", "MSFT", "NVDA", "AMZN"},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "LSE",
			Type:          "equities",
			Timezone:      "Europe/London",
			PreOpenTime:   "07:00",
			PostCloseTime: "16:30",
			Image:         "docker.io/opentrade/exchange-service:latest",
			GRPCPort:      50055,
			Symbols:       []string{"HSBA", "SHEL", "AZN"},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            "TSE",
			Type:          "equities",
			Timezone:      "Asia/Tokyo",
			PreOpenTime:   "08:00",
			PostCloseTime: "15:00",
			Image:         "docker.io/opentrade/exchange-service:latest",
			GRPCPort:      50055,
			Symbols:       []string{"7203", "6758", "9984"},
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}

	for _, ex := range exchanges {
		if err := store.CreateExchange(ex); err != nil {
			return fmt.Errorf("failed to seed exchange %s: %w", ex.ID, err)
		}
		fmt.Printf("seeded exchange %s (%s %s-%s)\n", ex.ID, ex.Timezone, ex.PreOpenTime, ex.PostCloseTime)
	}
	return nil
}
