// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dutchsdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radstarter/dutchd/pkg/amm"
	"github.com/radstarter/dutchd/pkg/api"
	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/auction"
	"github.com/radstarter/dutchd/pkg/log"
	"github.com/radstarter/dutchd/pkg/lpadapter"
	"github.com/radstarter/dutchd/pkg/tick"
)

func newDaemon(t *testing.T) (*Client, *asset.Credential, *tick.Manual) {
	t.Helper()
	currency := asset.NewResource("RadStable", "RSD")
	ticks := tick.NewManual(0)
	adapter := lpadapter.New(amm.NewMemoryFactory(), log.NoOp())

	controller, operator, err := auction.New(currency, ticks, adapter, nil, nil, log.NoOp())
	require.NoError(t, err)

	server := api.NewServer(controller, nil, 10*time.Millisecond, log.NoOp())
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL), operator, ticks
}

func TestClientLifecycle(t *testing.T) {
	require := require.New(t)
	client, operator, ticks := newDaemon(t)
	ctx := context.Background()

	created, err := client.CreateOffering(ctx, operator.TypeID().String(), OfferingParams{
		TokenName:     "RadCoin",
		TokenSymbol:   "RAD",
		Supply:        "1000",
		StartingPrice: "10",
		DecayRate:     "0.01",
		DurationTicks: 500,
		LiquidityPct:  "10",
	})
	require.NoError(err)
	require.Equal("0", created.ID)
	clearing := created.ClearingCredential.ResourceID

	bought, err := client.Buy(ctx, 0, "5000")
	require.NoError(err)
	require.Equal("500", bought.Tokens.String())
	require.True(bought.Change.IsZero())

	offering, err := client.GetOffering(ctx, 0)
	require.NoError(err)
	require.Equal("open", offering.State)
	require.Equal("500", offering.Remaining.String())
	require.Equal("5000", offering.Proceeds.String())

	ticks.Set(501)

	liquidity, err := client.ProvideLiquidity(ctx, 0, clearing)
	require.NoError(err)
	require.Equal("100", liquidity.PoolShares.String())
	require.NotEmpty(liquidity.PoolAddress)

	cleared, err := client.Clear(ctx, 0, clearing)
	require.NoError(err)
	require.Equal("4500", cleared.Proceeds.String())
	require.Equal("400", cleared.Tokens.String())
}

func TestClientErrors(t *testing.T) {
	require := require.New(t)
	client, operator, _ := newDaemon(t)
	ctx := context.Background()

	_, err := client.GetOffering(ctx, 42)
	var apiErr *APIError
	require.True(errors.As(err, &apiErr))
	require.Equal(http.StatusNotFound, apiErr.StatusCode)

	_, err = client.CreateOffering(ctx, "not-a-credential", OfferingParams{
		TokenName:     "RadCoin",
		TokenSymbol:   "RAD",
		Supply:        "1000",
		StartingPrice: "10",
		DecayRate:     "0.01",
		DurationTicks: 500,
		LiquidityPct:  "10",
	})
	require.True(errors.As(err, &apiErr))
	require.Equal(http.StatusForbidden, apiErr.StatusCode)

	active, err := client.ToggleCircuit(ctx, operator.TypeID().String())
	require.NoError(err)
	require.False(active)
}

func TestClientStreamPrices(t *testing.T) {
	require := require.New(t)
	client, operator, ticks := newDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.CreateOffering(ctx, operator.TypeID().String(), OfferingParams{
		TokenName:     "RadCoin",
		TokenSymbol:   "RAD",
		Supply:        "1000",
		StartingPrice: "10",
		DecayRate:     "0.01",
		DurationTicks: 500,
		LiquidityPct:  "0",
	})
	require.NoError(err)

	ticks.Set(200)
	quotes, err := client.StreamPrices(ctx, 0)
	require.NoError(err)

	quote, ok := <-quotes
	require.True(ok)
	require.Equal(uint64(200), quote.Tick)
	require.Equal("8", quote.Price.String())

	// Ending the window terminates the stream.
	ticks.Set(501)
	for range quotes {
	}
}
