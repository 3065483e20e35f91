// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"github.com/shopspring/decimal"

	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/ids"
)

// Offering is one Dutch auction: an escrowed token supply, the payment
// pool it accumulates, and the pricing/settlement parameters fixed at
// creation. Offerings are created once and never deleted.
type Offering struct {
	ID               uint32
	ClearingCredType ids.ResourceID

	// Exclusive custody. Payment accumulates buyer currency; Sales holds
	// the unsold token supply.
	Payment *asset.Account
	Sales   *asset.Account

	StartingPrice decimal.Decimal
	DecayRate     decimal.Decimal
	StartTick     uint64
	DurationTicks uint64

	// LiquidityFraction of both the offered supply and the collected
	// payment is reserved for pool seeding, in [0, 0.51].
	LiquidityFraction  decimal.Decimal
	TotalSupplyOffered decimal.Decimal

	LastWithdrawalTick   uint64
	LiquidityProvisioned bool
}

// started reports whether the auction window has opened at tick now.
func (o *Offering) started(now uint64) bool {
	return now >= o.StartTick
}

// ended reports whether the auction window has closed at tick now.
// The window is [StartTick, StartTick+DurationTicks] inclusive.
func (o *Offering) ended(now uint64) bool {
	return now > o.StartTick+o.DurationTicks
}

// priceAt returns the curve price for a tick inside the window:
// startingPrice - elapsed*decayRate, in whole-tick steps.
func (o *Offering) priceAt(now uint64) decimal.Decimal {
	elapsed := decimal.NewFromInt(int64(now - o.StartTick))
	return o.StartingPrice.Sub(elapsed.Mul(o.DecayRate))
}

// reserveFloor is the token amount buyers can never touch: the slice kept
// back for pool seeding.
func (o *Offering) reserveFloor() decimal.Decimal {
	return o.LiquidityFraction.Mul(o.TotalSupplyOffered)
}

// State labels for quotes and the HTTP surface.
const (
	StatePending = "pending"
	StateOpen    = "open"
	StateEnded   = "ended"
)

// state returns the window phase at tick now.
func (o *Offering) state(now uint64) string {
	switch {
	case !o.started(now):
		return StatePending
	case o.ended(now):
		return StateEnded
	default:
		return StateOpen
	}
}
