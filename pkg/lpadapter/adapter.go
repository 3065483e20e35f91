// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package lpadapter wraps the external AMM's pool constructor behind the
// narrow contract the auction controller needs.
package lpadapter

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radstarter/dutchd/pkg/amm"
	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/log"
)

// ErrAdapterFailure wraps any failure from the external pool constructor.
var ErrAdapterFailure = errors.New("pool creation failed")

var defaultFeeRate = decimal.RequireFromString("0.003")

// Adapter forwards two asset deposits to the external AMM and hands back
// the pool-share tokens and the created pool's address. It keeps only a
// back-reference to the created pool.
type Adapter struct {
	factory amm.PoolFactory
	pool    *amm.Pool
	log     log.Logger
}

// New creates an Adapter over the given pool factory.
func New(factory amm.PoolFactory, logger log.Logger) *Adapter {
	return &Adapter{factory: factory, log: logger}
}

// CreatePool derives the pool's name and symbol from the deposits' type
// metadata and forwards both deposits to the external AMM. The seed share
// supply equals the first deposit's amount. Failures from the external call
// propagate wrapped as ErrAdapterFailure.
func (a *Adapter) CreatePool(tokenA, tokenB *asset.Bucket) (*asset.Bucket, string, error) {
	symA := tokenA.Resource().Symbol
	symB := tokenB.Resource().Symbol

	name := fmt.Sprintf("%s/%s Pool", symA, symB)
	symbol := fmt.Sprintf("dex-%s-%s", symA, symB)
	seedShares := tokenA.Amount()

	pool, shares, err := a.factory.CreatePool(tokenA, tokenB, seedShares, symbol, name, "localhost", defaultFeeRate)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}

	a.pool = pool
	a.log.Info("liquidity pool created",
		zap.String("pool", pool.Address()),
		zap.String("symbol", symbol),
		zap.String("shares", shares.Amount().String()))

	return shares, pool.Address(), nil
}

// Pool returns the created pool handle, if any.
func (a *Adapter) Pool() *amm.Pool {
	return a.pool
}
