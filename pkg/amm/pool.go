// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm is the boundary to the external automated market maker. The
// controller only depends on the PoolFactory contract; MemoryFactory is the
// in-process implementation used by the daemon and tests.
package amm

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radstarter/dutchd/pkg/asset"
)

var (
	ErrEmptyDeposit    = errors.New("pool deposits must be non-empty")
	ErrSamePair        = errors.New("pool requires two distinct resources")
	ErrInvalidShares   = errors.New("invalid pool share amount")
	ErrWrongPoolShares = errors.New("shares do not belong to this pool")
)

// PoolFactory constructs liquidity pools from two asset deposits.
type PoolFactory interface {
	CreatePool(a, b *asset.Bucket, initialShares decimal.Decimal, symbol, name, url string, feeRate decimal.Decimal) (*Pool, *asset.Bucket, error)
}

// Pool is a constant-product pair. Reserves are exclusive custody accounts;
// the pool is the only holder.
type Pool struct {
	address     string
	shareRes    asset.Resource
	reserveA    *asset.Account
	reserveB    *asset.Account
	feeRate     decimal.Decimal
	totalShares decimal.Decimal
}

// Address returns the pool's address.
func (p *Pool) Address() string {
	return p.address
}

// ShareResource returns the pool-share token resource.
func (p *Pool) ShareResource() asset.Resource {
	return p.shareRes
}

// Reserves returns the current reserve balances of the pair.
func (p *Pool) Reserves() (decimal.Decimal, decimal.Decimal) {
	return p.reserveA.Balance(), p.reserveB.Balance()
}

// TotalShares returns the outstanding pool-share supply.
func (p *Pool) TotalShares() decimal.Decimal {
	return p.totalShares
}

// AddLiquidity deposits a pair at the current reserve ratio and mints
// shares. The limiting side sets the deposit size; any excess on the other
// side stays in the caller's bucket.
func (p *Pool) AddLiquidity(a, b *asset.Bucket) (*asset.Bucket, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return nil, ErrEmptyDeposit
	}
	if !a.Resource().Same(p.reserveA.Resource()) || !b.Resource().Same(p.reserveB.Resource()) {
		return nil, asset.ErrResourceMismatch
	}

	ra, rb := p.reserveA.Balance(), p.reserveB.Balance()
	frac := a.Amount().Div(ra)
	if fb := b.Amount().Div(rb); fb.LessThan(frac) {
		frac = fb
	}

	depositA, err := a.Take(frac.Mul(ra))
	if err != nil {
		return nil, err
	}
	depositB, err := b.Take(frac.Mul(rb))
	if err != nil {
		return nil, err
	}
	if err := p.reserveA.Deposit(depositA); err != nil {
		return nil, err
	}
	if err := p.reserveB.Deposit(depositB); err != nil {
		return nil, err
	}

	minted := frac.Mul(p.totalShares)
	p.totalShares = p.totalShares.Add(minted)
	return asset.NewBucket(p.shareRes, minted)
}

// RemoveLiquidity burns shares and pays out the proportional reserves.
func (p *Pool) RemoveLiquidity(shares *asset.Bucket) (*asset.Bucket, *asset.Bucket, error) {
	if !shares.Resource().Same(p.shareRes) {
		return nil, nil, ErrWrongPoolShares
	}
	if shares.IsEmpty() || shares.Amount().GreaterThan(p.totalShares) {
		return nil, nil, ErrInvalidShares
	}

	frac := shares.Amount().Div(p.totalShares)
	outA, err := p.reserveA.Withdraw(p.reserveA.Balance().Mul(frac))
	if err != nil {
		return nil, nil, err
	}
	outB, err := p.reserveB.Withdraw(p.reserveB.Balance().Mul(frac))
	if err != nil {
		return nil, nil, err
	}
	p.totalShares = p.totalShares.Sub(shares.TakeAll().Amount())
	return outA, outB, nil
}

// Swap trades input for the opposite reserve under x*y=k with the pool fee.
func (p *Pool) Swap(input *asset.Bucket) (*asset.Bucket, error) {
	if input.IsEmpty() {
		return nil, ErrEmptyDeposit
	}

	var in, out *asset.Account
	switch {
	case input.Resource().Same(p.reserveA.Resource()):
		in, out = p.reserveA, p.reserveB
	case input.Resource().Same(p.reserveB.Resource()):
		in, out = p.reserveB, p.reserveA
	default:
		return nil, asset.ErrResourceMismatch
	}

	effective := input.Amount().Mul(decimal.NewFromInt(1).Sub(p.feeRate))
	k := in.Balance().Mul(out.Balance())
	newOut := k.Div(in.Balance().Add(effective))
	payout := out.Balance().Sub(newOut)

	if err := in.Deposit(input); err != nil {
		return nil, err
	}
	return out.Withdraw(payout)
}

// MemoryFactory creates in-process pools.
type MemoryFactory struct{}

// NewMemoryFactory creates a MemoryFactory.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// CreatePool seeds a new pair from the two deposits and mints the initial
// pool-share supply to the caller.
func (f *MemoryFactory) CreatePool(a, b *asset.Bucket, initialShares decimal.Decimal, symbol, name, url string, feeRate decimal.Decimal) (*Pool, *asset.Bucket, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return nil, nil, ErrEmptyDeposit
	}
	if a.Resource().Same(b.Resource()) {
		return nil, nil, ErrSamePair
	}
	if initialShares.Sign() <= 0 {
		return nil, nil, ErrInvalidShares
	}

	pool := &Pool{
		address:     uuid.New().String(),
		shareRes:    asset.NewResource(name, symbol),
		reserveA:    asset.NewAccountWithBucket(a),
		reserveB:    asset.NewAccountWithBucket(b),
		feeRate:     feeRate,
		totalShares: initialShares,
	}

	shares, err := asset.NewBucket(pool.shareRes, initialShares)
	if err != nil {
		return nil, nil, err
	}
	return pool, shares, nil
}
