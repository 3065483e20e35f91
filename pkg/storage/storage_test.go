// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/ids"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("memory", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOfferingRoundTrip(t *testing.T) {
	require := require.New(t)
	s := newMemStore(t)

	rec := &OfferingRecord{
		ID:                 3,
		ClearingCredType:   ids.GenerateResourceID(),
		TokenResource:      asset.NewResource("RadCoin", "RAD"),
		PaymentBalance:     decimal.RequireFromString("123.45"),
		SalesBalance:       decimal.NewFromInt(900),
		StartingPrice:      decimal.NewFromInt(10),
		DecayRate:          decimal.RequireFromString("0.01"),
		DurationTicks:      500,
		LiquidityFraction:  decimal.RequireFromString("0.1"),
		TotalSupplyOffered: decimal.NewFromInt(1000),
		LastWithdrawalTick: 525,
	}
	require.NoError(s.PutOffering(rec))

	got, err := s.GetOffering(3)
	require.NoError(err)
	require.Equal(rec.ID, got.ID)
	require.Equal(rec.ClearingCredType, got.ClearingCredType)
	require.Equal(rec.TokenResource.ID, got.TokenResource.ID)
	require.True(got.PaymentBalance.Equal(rec.PaymentBalance))
	require.True(got.SalesBalance.Equal(rec.SalesBalance))
	require.Equal(rec.LastWithdrawalTick, got.LastWithdrawalTick)
}

func TestListOfferings(t *testing.T) {
	require := require.New(t)
	s := newMemStore(t)

	for i := uint32(0); i < 5; i++ {
		require.NoError(s.PutOffering(&OfferingRecord{
			ID:            i,
			TokenResource: asset.NewResource("RadCoin", "RAD"),
		}))
	}

	recs, err := s.ListOfferings()
	require.NoError(err)
	require.Len(recs, 5)

	// Big-endian keys keep ids in order.
	for i, rec := range recs {
		require.Equal(uint32(i), rec.ID)
	}
}

func TestControllerRecord(t *testing.T) {
	require := require.New(t)
	s := newMemStore(t)

	_, ok, err := s.GetController()
	require.NoError(err)
	require.False(ok)

	rec := &ControllerRecord{
		NextID:           7,
		Active:           true,
		OperatorCredType: ids.GenerateResourceID(),
		Currency:         asset.NewResource("RadStable", "RSD"),
		LastTick:         600,
	}
	require.NoError(s.PutController(rec))

	got, ok, err := s.GetController()
	require.NoError(err)
	require.True(ok)
	require.Equal(rec.NextID, got.NextID)
	require.Equal(rec.OperatorCredType, got.OperatorCredType)
	require.Equal(rec.Currency.ID, got.Currency.ID)
	require.Equal(rec.LastTick, got.LastTick)
}
