// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import "errors"

// Every entry-point failure surfaces one of these sentinels. Calls are
// all-or-nothing: a returned error means no account or flag changed.
var (
	ErrUnauthorized            = errors.New("caller does not hold the required credential")
	ErrInvalidParameters       = errors.New("invalid offering parameters")
	ErrCircuitOpen             = errors.New("controller is not active")
	ErrNotFound                = errors.New("unknown offering id")
	ErrAuctionNotStarted       = errors.New("auction has not started")
	ErrAuctionEnded            = errors.New("auction has ended")
	ErrAuctionNotEnded         = errors.New("auction has not ended")
	ErrWrongCurrency           = errors.New("payment is not the reference currency")
	ErrSoldOut                 = errors.New("offering is sold out")
	ErrRateLimited             = errors.New("withdrawal cooldown has not elapsed")
	ErrLiquidityNotProvisioned = errors.New("liquidity must be provisioned before withdrawal")
	ErrWrongCredential         = errors.New("credential does not clear this offering")
	ErrAlreadyProvisioned      = errors.New("liquidity already provisioned")
	ErrInsufficientReserve     = errors.New("sales sold below the liquidity reserve")
	ErrAdapterFailure          = errors.New("liquidity adapter call failed")
)
