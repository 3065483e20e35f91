// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction implements the Dutch auction controller: time-decayed
// pricing, purchase and change arithmetic, multi-offering bookkeeping, and
// the post-auction settlement state machine.
package auction

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/ids"
	"github.com/radstarter/dutchd/pkg/log"
	"github.com/radstarter/dutchd/pkg/lpadapter"
	"github.com/radstarter/dutchd/pkg/metric"
	"github.com/radstarter/dutchd/pkg/storage"
	"github.com/radstarter/dutchd/pkg/tick"
)

const (
	// withdrawCooldown is the minimum tick gap between settlement
	// withdrawals on one offering.
	withdrawCooldown = 24

	// amountPrecision bounds division results. Quotients are truncated so
	// tokens bought times price never exceeds the payment taken.
	amountPrecision = 18

	credentialIDTag = "id"
)

// defaultWithdrawLimit caps the per-call settlement withdrawal size.
var defaultWithdrawLimit = decimal.NewFromInt(25000)

var (
	fractionMax = decimal.RequireFromString("0.51")
	oneHundred  = decimal.NewFromInt(100)
)

// Controller owns all auction state. It is a singleton constructed once at
// process start; entry points serialize on its mutex, so each call applies
// fully or not at all.
type Controller struct {
	mu sync.Mutex

	offerings map[uint32]*Offering
	nextID    uint32

	operatorCredType ids.ResourceID
	active           bool
	withdrawLimit    decimal.Decimal

	currency asset.Resource
	ticks    tick.Source
	adapter  *lpadapter.Adapter

	store   *storage.Store
	metrics *metric.Metrics
	log     log.Logger
}

// New constructs the controller and mints the single operator credential.
// If the store already holds controller state, offerings and the breaker
// are restored from it and the returned credential carries the recorded
// operator type. store and metrics may be nil.
func New(currency asset.Resource, ticks tick.Source, adapter *lpadapter.Adapter, store *storage.Store, metrics *metric.Metrics, logger log.Logger) (*Controller, *asset.Credential, error) {
	c := &Controller{
		offerings:     make(map[uint32]*Offering),
		active:        true,
		withdrawLimit: defaultWithdrawLimit,
		currency:      currency,
		ticks:         ticks,
		adapter:       adapter,
		store:         store,
		metrics:       metrics,
		log:           logger,
	}

	if store != nil {
		rec, ok, err := store.GetController()
		if err != nil {
			return nil, nil, err
		}
		if ok {
			cred, err := c.restore(rec)
			if err != nil {
				return nil, nil, err
			}
			return c, cred, nil
		}
	}

	operator := asset.MintCredential("DutchAuctionController", nil)
	c.operatorCredType = operator.TypeID()
	if err := c.persistController(); err != nil {
		return nil, nil, err
	}
	return c, operator, nil
}

// CreateOffering escrows the deposited tokens and registers a new offering
// under a fresh id. It returns the clearing credential that authorizes the
// offering's settlement calls. Operator only.
func (c *Controller) CreateOffering(operator *asset.Credential, tokens *asset.Bucket, startingPrice, decayRate string, startTick, durationTicks uint64, liquidityPct string) (*asset.Credential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOperator(operator); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(startingPrice)
	if err != nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: starting price %q must be a positive decimal", ErrInvalidParameters, startingPrice)
	}
	decay, err := decimal.NewFromString(decayRate)
	if err != nil || decay.Sign() <= 0 {
		return nil, fmt.Errorf("%w: decay rate %q must be a positive decimal", ErrInvalidParameters, decayRate)
	}

	// Price must stay positive for the whole window.
	maxDuration := price.Div(decay)
	if decimal.NewFromInt(int64(durationTicks)).GreaterThanOrEqual(maxDuration) {
		return nil, fmt.Errorf("%w: %d ticks at decay %s drives the price non-positive", ErrInvalidParameters, durationTicks, decayRate)
	}

	pct, err := decimal.NewFromString(liquidityPct)
	if err != nil {
		return nil, fmt.Errorf("%w: liquidity percentage %q", ErrInvalidParameters, liquidityPct)
	}
	fraction := pct.Div(oneHundred)
	if fraction.IsNegative() || fraction.GreaterThan(fractionMax) {
		return nil, fmt.Errorf("%w: liquidity percentage must be between 0 and 51", ErrInvalidParameters)
	}

	if tokens.IsEmpty() {
		return nil, fmt.Errorf("%w: token deposit is empty", ErrInvalidParameters)
	}

	id := c.nextID
	clearing := asset.MintCredential("RadStarter Clearing Credential", map[string]string{
		credentialIDTag: strconv.FormatUint(uint64(id), 10),
	})

	supply := tokens.Amount()
	offering := &Offering{
		ID:                 id,
		ClearingCredType:   clearing.TypeID(),
		Payment:            asset.NewAccount(c.currency),
		Sales:              asset.NewAccountWithBucket(tokens),
		StartingPrice:      price,
		DecayRate:          decay,
		StartTick:          startTick,
		DurationTicks:      durationTicks,
		LiquidityFraction:  fraction,
		TotalSupplyOffered: supply,
	}

	c.offerings[id] = offering
	c.nextID++

	c.persist(offering)
	if c.metrics != nil {
		c.metrics.OfferingsCreated.Inc()
	}
	c.log.Info("offering created",
		zap.Uint32("id", id),
		zap.String("supply", offering.TotalSupplyOffered.String()),
		zap.String("starting_price", price.String()),
		zap.Uint64("start_tick", startTick),
		zap.Uint64("duration_ticks", durationTicks))

	return clearing, nil
}

// Buy purchases tokens from an open offering at the current curve price.
// Public entry point. Returns the bought tokens and a change bucket; the
// change is empty unless remaining stock forced a partial fill.
func (c *Controller) Buy(id uint32, payment *asset.Bucket) (*asset.Bucket, *asset.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil, nil, c.reject(ErrCircuitOpen)
	}
	offering, ok := c.offerings[id]
	if !ok {
		return nil, nil, c.reject(ErrNotFound)
	}

	now := c.ticks.Current()
	if !offering.started(now) {
		return nil, nil, c.reject(ErrAuctionNotStarted)
	}
	if offering.ended(now) {
		return nil, nil, c.reject(ErrAuctionEnded)
	}
	if !payment.Resource().Same(c.currency) {
		return nil, nil, c.reject(ErrWrongCurrency)
	}

	// The slice reserved for pool seeding is untouchable: once remaining
	// stock reaches the floor, no further purchases are accepted.
	available := offering.Sales.Balance()
	if available.LessThanOrEqual(offering.reserveFloor()) {
		return nil, nil, c.reject(ErrSoldOut)
	}

	price := offering.priceAt(now)
	requested := quotient(payment.Amount(), price)

	// Partial fill: return the unfillable slice of the payment as change
	// and recompute against what is left.
	change := asset.EmptyBucket(c.currency)
	if requested.GreaterThan(available) {
		unfilled := requested.Sub(available)
		refund, err := payment.Take(unfilled.Mul(price))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: change computation", ErrInvalidParameters)
		}
		if err := change.Put(refund); err != nil {
			return nil, nil, err
		}
		requested = quotient(payment.Amount(), price)
		if requested.GreaterThan(available) {
			requested = available
		}
	}

	paid := payment.Amount()
	if err := offering.Payment.Deposit(payment); err != nil {
		return nil, nil, err
	}
	tokens, err := offering.Sales.Withdraw(requested)
	if err != nil {
		return nil, nil, err
	}

	c.persist(offering)
	if c.metrics != nil {
		c.metrics.Purchases.Inc()
		c.metrics.PurchaseSize.Observe(requested.InexactFloat64())
	}
	c.log.Debug("purchase filled",
		zap.Uint32("id", id),
		zap.String("price", price.String()),
		zap.String("paid", paid.String()),
		zap.String("tokens", requested.String()),
		zap.String("change", change.Amount().String()))

	return tokens, change, nil
}

// ClearOffering withdraws settled proceeds, rate-limited per call and per
// cooldown window. Requires the offering's clearing credential, a closed
// auction window, and the liquidity-provisioning gate. Calling after both
// accounts are drained returns two empty buckets.
func (c *Controller) ClearOffering(cred *asset.Credential) (*asset.Bucket, *asset.Bucket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil, nil, c.reject(ErrCircuitOpen)
	}
	offering, err := c.resolveClearing(cred)
	if err != nil {
		return nil, nil, c.reject(err)
	}

	now := c.ticks.Current()
	if !offering.ended(now) {
		return nil, nil, c.reject(ErrAuctionNotEnded)
	}

	// One withdrawal per cooldown window. A LastWithdrawalTick of zero
	// means no withdrawal yet: settlement is only reachable at tick >= 1,
	// so zero never collides with a recorded withdrawal. A clock behind
	// the recorded withdrawal fails closed.
	if offering.LastWithdrawalTick > 0 &&
		(now < offering.LastWithdrawalTick || now-offering.LastWithdrawalTick < withdrawCooldown) {
		return nil, nil, c.reject(ErrRateLimited)
	}

	if !offering.LiquidityProvisioned && offering.LiquidityFraction.Sign() > 0 {
		return nil, nil, c.reject(ErrLiquidityNotProvisioned)
	}

	offering.LastWithdrawalTick = now
	tokens := offering.Sales.WithdrawUpTo(c.withdrawLimit)
	proceeds := offering.Payment.WithdrawUpTo(c.withdrawLimit)

	c.persist(offering)
	if c.metrics != nil {
		c.metrics.Withdrawals.Inc()
		c.metrics.ProceedsWithdrawn.Observe(proceeds.Amount().InexactFloat64())
	}
	c.log.Info("offering cleared",
		zap.Uint32("id", offering.ID),
		zap.String("proceeds", proceeds.Amount().String()),
		zap.String("tokens", tokens.Amount().String()))

	return proceeds, tokens, nil
}

// ProvideLiquidity carves the reserved fraction out of both accounts and
// seeds the external pool through the adapter. One shot per offering; a
// second call fails with ErrAlreadyProvisioned.
func (c *Controller) ProvideLiquidity(cred *asset.Credential) (*asset.Bucket, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil, "", c.reject(ErrCircuitOpen)
	}
	offering, err := c.resolveClearing(cred)
	if err != nil {
		return nil, "", c.reject(err)
	}

	now := c.ticks.Current()
	if !offering.ended(now) {
		return nil, "", c.reject(ErrAuctionNotEnded)
	}
	if offering.LiquidityProvisioned {
		return nil, "", c.reject(ErrAlreadyProvisioned)
	}

	// A single oversized purchase can legally clear the whole supply, floor
	// included. That leaves nothing to seed; the operator escape hatch
	// (SetLiquidityProvisioned) unblocks withdrawal.
	tokenSeed, err := offering.Sales.Withdraw(offering.reserveFloor())
	if err != nil {
		return nil, "", c.reject(ErrInsufficientReserve)
	}
	paymentSeed, err := offering.Payment.Withdraw(offering.Payment.Balance().Mul(offering.LiquidityFraction))
	if err != nil {
		_ = offering.Sales.Deposit(tokenSeed)
		return nil, "", c.reject(ErrInsufficientReserve)
	}

	shares, address, err := c.adapter.CreatePool(tokenSeed, paymentSeed)
	if err != nil {
		// All-or-nothing: the factory consumes nothing on failure, so the
		// seeds go straight back.
		_ = offering.Sales.Deposit(tokenSeed)
		_ = offering.Payment.Deposit(paymentSeed)
		return nil, "", fmt.Errorf("%w: %v", ErrAdapterFailure, err)
	}

	offering.LiquidityProvisioned = true

	c.persist(offering)
	if c.metrics != nil {
		c.metrics.PoolsSeeded.Inc()
	}
	c.log.Info("liquidity provisioned",
		zap.Uint32("id", offering.ID),
		zap.String("pool", address),
		zap.String("shares", shares.Amount().String()))

	return shares, address, nil
}

// ToggleCircuit flips the breaker. Operator only.
func (c *Controller) ToggleCircuit(operator *asset.Credential) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOperator(operator); err != nil {
		return err
	}
	c.active = !c.active
	if err := c.persistController(); err != nil {
		c.log.Error("persisting controller state", zap.Error(err))
	}
	c.log.Warn("circuit toggled", zap.Bool("active", c.active))
	return nil
}

// SetLiquidityProvisioned force-opens the withdrawal gate for an offering
// whose adapter call path failed irrecoverably. Operator only.
func (c *Controller) SetLiquidityProvisioned(operator *asset.Credential, id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOperator(operator); err != nil {
		return err
	}
	offering, ok := c.offerings[id]
	if !ok {
		return ErrNotFound
	}
	offering.LiquidityProvisioned = true
	c.persist(offering)
	c.log.Warn("liquidity flag forced", zap.Uint32("id", id))
	return nil
}

// Quote is a point-in-time view of an offering's price curve.
type Quote struct {
	ID        uint32          `json:"id"`
	Tick      uint64          `json:"tick"`
	State     string          `json:"state"`
	Price     decimal.Decimal `json:"price"`
	Remaining decimal.Decimal `json:"remaining"`
}

// PriceQuote returns the current curve point for an offering. Outside the
// window the price clamps to the curve endpoint.
func (c *Controller) PriceQuote(id uint32) (Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offering, ok := c.offerings[id]
	if !ok {
		return Quote{}, ErrNotFound
	}

	now := c.ticks.Current()
	at := now
	if !offering.started(now) {
		at = offering.StartTick
	} else if offering.ended(now) {
		at = offering.StartTick + offering.DurationTicks
	}

	return Quote{
		ID:        id,
		Tick:      now,
		State:     offering.state(now),
		Price:     offering.priceAt(at),
		Remaining: offering.Sales.Balance(),
	}, nil
}

// Info is a read-only snapshot of an offering for the HTTP surface.
type Info struct {
	ID                   uint32          `json:"id"`
	State                string          `json:"state"`
	StartingPrice        decimal.Decimal `json:"starting_price"`
	DecayRate            decimal.Decimal `json:"decay_rate"`
	StartTick            uint64          `json:"start_tick"`
	DurationTicks        uint64          `json:"duration_ticks"`
	LiquidityFraction    decimal.Decimal `json:"liquidity_fraction"`
	TotalSupplyOffered   decimal.Decimal `json:"total_supply_offered"`
	Remaining            decimal.Decimal `json:"remaining"`
	Proceeds             decimal.Decimal `json:"proceeds"`
	LiquidityProvisioned bool            `json:"liquidity_provisioned"`
}

// OfferingInfo returns a snapshot of one offering.
func (c *Controller) OfferingInfo(id uint32) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offering, ok := c.offerings[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{
		ID:                   id,
		State:                offering.state(c.ticks.Current()),
		StartingPrice:        offering.StartingPrice,
		DecayRate:            offering.DecayRate,
		StartTick:            offering.StartTick,
		DurationTicks:        offering.DurationTicks,
		LiquidityFraction:    offering.LiquidityFraction,
		TotalSupplyOffered:   offering.TotalSupplyOffered,
		Remaining:            offering.Sales.Balance(),
		Proceeds:             offering.Payment.Balance(),
		LiquidityProvisioned: offering.LiquidityProvisioned,
	}, nil
}

// Checkpoint records the current tick in the store. The daemon calls this
// from its tick loop so a restart never resumes behind the observed clock,
// even when no entry point ran in between.
func (c *Controller) Checkpoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.persistController(); err != nil {
		c.log.Error("persisting controller state", zap.Error(err))
	}
}

// Active reports the breaker state.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Currency returns the configured reference currency.
func (c *Controller) Currency() asset.Resource {
	return c.currency
}

// internal

func (c *Controller) requireOperator(cred *asset.Credential) error {
	if cred == nil || cred.TypeID() != c.operatorCredType {
		return ErrUnauthorized
	}
	return nil
}

// resolveClearing maps a presented clearing credential to its offering.
func (c *Controller) resolveClearing(cred *asset.Credential) (*Offering, error) {
	if cred == nil {
		return nil, ErrWrongCredential
	}
	tag, ok := cred.Tag(credentialIDTag)
	if !ok {
		return nil, ErrWrongCredential
	}
	id64, err := strconv.ParseUint(tag, 10, 32)
	if err != nil {
		return nil, ErrWrongCredential
	}
	offering, ok := c.offerings[uint32(id64)]
	if !ok {
		return nil, ErrNotFound
	}
	if cred.TypeID() != offering.ClearingCredType {
		return nil, ErrWrongCredential
	}
	return offering, nil
}

// reject counts a refused call and passes the sentinel through.
func (c *Controller) reject(err error) error {
	if c.metrics != nil {
		c.metrics.CallsRejected.WithLabelValues(reasonLabel(err)).Inc()
	}
	return err
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuctionNotStarted):
		return "not_started"
	case errors.Is(err, ErrAuctionEnded):
		return "ended"
	case errors.Is(err, ErrAuctionNotEnded):
		return "not_ended"
	case errors.Is(err, ErrWrongCurrency):
		return "wrong_currency"
	case errors.Is(err, ErrSoldOut):
		return "sold_out"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrLiquidityNotProvisioned):
		return "liquidity_not_provisioned"
	case errors.Is(err, ErrWrongCredential):
		return "wrong_credential"
	case errors.Is(err, ErrAlreadyProvisioned):
		return "already_provisioned"
	case errors.Is(err, ErrInsufficientReserve):
		return "insufficient_reserve"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "other"
	}
}

func (c *Controller) persist(offering *Offering) {
	if c.store == nil {
		return
	}
	rec := &storage.OfferingRecord{
		ID:                   offering.ID,
		ClearingCredType:     offering.ClearingCredType,
		TokenResource:        offering.Sales.Resource(),
		PaymentBalance:       offering.Payment.Balance(),
		SalesBalance:         offering.Sales.Balance(),
		StartingPrice:        offering.StartingPrice,
		DecayRate:            offering.DecayRate,
		StartTick:            offering.StartTick,
		DurationTicks:        offering.DurationTicks,
		LiquidityFraction:    offering.LiquidityFraction,
		TotalSupplyOffered:   offering.TotalSupplyOffered,
		LastWithdrawalTick:   offering.LastWithdrawalTick,
		LiquidityProvisioned: offering.LiquidityProvisioned,
	}
	if err := c.store.PutOffering(rec); err != nil {
		c.log.Error("persisting offering", zap.Uint32("id", offering.ID), zap.Error(err))
	}
	if err := c.persistController(); err != nil {
		c.log.Error("persisting controller state", zap.Error(err))
	}
}

func (c *Controller) persistController() error {
	if c.store == nil {
		return nil
	}
	return c.store.PutController(&storage.ControllerRecord{
		NextID:           c.nextID,
		Active:           c.active,
		OperatorCredType: c.operatorCredType,
		Currency:         c.currency,
		LastTick:         c.ticks.Current(),
	})
}

// restore rebuilds controller and offering state from the store.
func (c *Controller) restore(rec *storage.ControllerRecord) (*asset.Credential, error) {
	c.nextID = rec.NextID
	c.active = rec.Active
	c.operatorCredType = rec.OperatorCredType
	c.currency = rec.Currency

	// The clock must never rewind across a restart: a rewound clock reopens
	// closed auction windows and breaks the withdrawal cooldown arithmetic.
	// Seed a settable source forward to the stored tick; refuse to start if
	// the source is stuck behind it.
	if s, ok := c.ticks.(interface{ Set(uint64) }); ok {
		s.Set(rec.LastTick)
	}
	if now := c.ticks.Current(); now < rec.LastTick {
		return nil, fmt.Errorf("tick source at %d is behind the stored clock %d", now, rec.LastTick)
	}

	recs, err := c.store.ListOfferings()
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		c.offerings[r.ID] = &Offering{
			ID:                   r.ID,
			ClearingCredType:     r.ClearingCredType,
			Payment:              asset.NewAccountWithBalance(rec.Currency, r.PaymentBalance),
			Sales:                asset.NewAccountWithBalance(r.TokenResource, r.SalesBalance),
			StartingPrice:        r.StartingPrice,
			DecayRate:            r.DecayRate,
			StartTick:            r.StartTick,
			DurationTicks:        r.DurationTicks,
			LiquidityFraction:    r.LiquidityFraction,
			TotalSupplyOffered:   r.TotalSupplyOffered,
			LastWithdrawalTick:   r.LastWithdrawalTick,
			LiquidityProvisioned: r.LiquidityProvisioned,
		}
	}

	c.log.Info("controller state restored",
		zap.Int("offerings", len(recs)),
		zap.Bool("active", c.active))

	// The operator still holds the original token; hand the daemon a
	// handle of the recorded type.
	return &asset.Credential{
		Resource: asset.Resource{ID: rec.OperatorCredType, Name: "DutchAuctionController"},
		Tags:     map[string]string{},
	}, nil
}

// quotient divides payment by price, truncating so that the result times
// price never exceeds payment.
func quotient(payment, price decimal.Decimal) decimal.Decimal {
	q, _ := payment.QuoRem(price, amountPrecision)
	return q
}
