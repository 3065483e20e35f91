// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package asset provides the ledger primitives the auction controller is
// built on: typed resources, transferable buckets, exclusive custody
// accounts, and capability credentials.
package asset

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radstarter/dutchd/pkg/ids"
)

var (
	ErrResourceMismatch    = errors.New("resource type mismatch")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNegativeAmount      = errors.New("amount must not be negative")
)

// Resource is the type metadata of an asset: a stable identifier plus the
// human-readable name and symbol used to label derived pools.
type Resource struct {
	ID     ids.ResourceID `json:"id"`
	Name   string         `json:"name"`
	Symbol string         `json:"symbol"`
}

// NewResource mints a fresh resource type. The uuid nonce keeps resources
// minted under the same name distinct.
func NewResource(name, symbol string) Resource {
	nonce := uuid.New()
	return Resource{
		ID:     ids.DeriveResourceID(name, nonce[:]),
		Name:   name,
		Symbol: symbol,
	}
}

// Same reports whether two resources are the same type.
func (r Resource) Same(other Resource) bool {
	return r.ID == other.ID
}

// Bucket is a transferable quantity of a single resource. Buckets are the
// only way value moves between accounts; splitting and merging are exact.
type Bucket struct {
	resource Resource
	amount   decimal.Decimal
}

// NewBucket creates a bucket holding amount of resource.
func NewBucket(resource Resource, amount decimal.Decimal) (*Bucket, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return &Bucket{resource: resource, amount: amount}, nil
}

// EmptyBucket creates a zero-amount bucket of resource.
func EmptyBucket(resource Resource) *Bucket {
	return &Bucket{resource: resource, amount: decimal.Zero}
}

// Resource returns the bucket's resource type.
func (b *Bucket) Resource() Resource {
	return b.resource
}

// Amount returns the quantity held.
func (b *Bucket) Amount() decimal.Decimal {
	return b.amount
}

// IsEmpty reports whether the bucket holds nothing.
func (b *Bucket) IsEmpty() bool {
	return b.amount.IsZero()
}

// Take splits off exactly amount into a new bucket.
func (b *Bucket) Take(amount decimal.Decimal) (*Bucket, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if b.amount.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	b.amount = b.amount.Sub(amount)
	return &Bucket{resource: b.resource, amount: amount}, nil
}

// TakeAll drains the bucket into a new one.
func (b *Bucket) TakeAll() *Bucket {
	out := &Bucket{resource: b.resource, amount: b.amount}
	b.amount = decimal.Zero
	return out
}

// Put merges other into b. Other is emptied on success.
func (b *Bucket) Put(other *Bucket) error {
	if !b.resource.Same(other.resource) {
		return ErrResourceMismatch
	}
	b.amount = b.amount.Add(other.amount)
	other.amount = decimal.Zero
	return nil
}

// Account is an exclusive custody balance for one resource. Only its owner
// holds a reference; all movement is explicit deposit and withdraw.
type Account struct {
	resource Resource
	balance  decimal.Decimal
}

// NewAccount creates an empty account for resource.
func NewAccount(resource Resource) *Account {
	return &Account{resource: resource, balance: decimal.Zero}
}

// NewAccountWithBucket creates an account seeded with the bucket's contents.
func NewAccountWithBucket(b *Bucket) *Account {
	a := NewAccount(b.Resource())
	_ = a.Deposit(b)
	return a
}

// NewAccountWithBalance rebuilds an account from a persisted balance.
// Only snapshot restore uses this; live balances move via buckets.
func NewAccountWithBalance(resource Resource, balance decimal.Decimal) *Account {
	return &Account{resource: resource, balance: balance}
}

// Resource returns the account's resource type.
func (a *Account) Resource() Resource {
	return a.resource
}

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal {
	return a.balance
}

// Deposit credits the account with the bucket's contents.
func (a *Account) Deposit(b *Bucket) error {
	if !a.resource.Same(b.resource) {
		return ErrResourceMismatch
	}
	a.balance = a.balance.Add(b.amount)
	b.amount = decimal.Zero
	return nil
}

// Withdraw debits exactly amount into a new bucket.
func (a *Account) Withdraw(amount decimal.Decimal) (*Bucket, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if a.balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	a.balance = a.balance.Sub(amount)
	return &Bucket{resource: a.resource, amount: amount}, nil
}

// WithdrawAll drains the account into a new bucket.
func (a *Account) WithdrawAll() *Bucket {
	out := &Bucket{resource: a.resource, amount: a.balance}
	a.balance = decimal.Zero
	return out
}

// WithdrawUpTo debits at most cap, taking the full balance if smaller.
func (a *Account) WithdrawUpTo(cap decimal.Decimal) *Bucket {
	if a.balance.LessThan(cap) {
		return a.WithdrawAll()
	}
	out, _ := a.Withdraw(cap)
	return out
}
