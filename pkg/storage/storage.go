// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists controller and offering state so a restarted
// daemon resumes with the same offerings, balances, and credentials.
package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/shopspring/decimal"

	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/ids"
)

var (
	offeringPrefix = []byte("offering/")
	controllerKey  = []byte("controller")
)

// OfferingRecord is the persisted form of one offering.
type OfferingRecord struct {
	ID                   uint32          `json:"id"`
	ClearingCredType     ids.ResourceID  `json:"clearing_cred_type"`
	TokenResource        asset.Resource  `json:"token_resource"`
	PaymentBalance       decimal.Decimal `json:"payment_balance"`
	SalesBalance         decimal.Decimal `json:"sales_balance"`
	StartingPrice        decimal.Decimal `json:"starting_price"`
	DecayRate            decimal.Decimal `json:"decay_rate"`
	StartTick            uint64          `json:"start_tick"`
	DurationTicks        uint64          `json:"duration_ticks"`
	LiquidityFraction    decimal.Decimal `json:"liquidity_fraction"`
	TotalSupplyOffered   decimal.Decimal `json:"total_supply_offered"`
	LastWithdrawalTick   uint64          `json:"last_withdrawal_tick"`
	LiquidityProvisioned bool            `json:"liquidity_provisioned"`
}

// ControllerRecord is the persisted singleton controller state. LastTick is
// the highest tick the controller observed; a restarted daemon seeds its
// clock from it so auction windows and cooldowns never rewind.
type ControllerRecord struct {
	NextID           uint32         `json:"next_id"`
	Active           bool           `json:"active"`
	OperatorCredType ids.ResourceID `json:"operator_cred_type"`
	Currency         asset.Resource `json:"currency"`
	LastTick         uint64         `json:"last_tick"`
}

// Store wraps luxfi's database interface.
type Store struct {
	db database.Database
}

// NewStore creates a store backed by the named engine.
func NewStore(dbType string, path string) (*Store, error) {
	var db database.Database
	var err error

	switch dbType {
	case "memory":
		db = memdb.New()
	default:
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// PutOffering writes one offering record.
func (s *Store) PutOffering(rec *OfferingRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put(offeringKey(rec.ID), value)
}

// GetOffering reads one offering record by id.
func (s *Store) GetOffering(id uint32) (*OfferingRecord, error) {
	value, err := s.db.Get(offeringKey(id))
	if err != nil {
		return nil, err
	}
	var rec OfferingRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListOfferings reads all offering records.
func (s *Store) ListOfferings() ([]*OfferingRecord, error) {
	it := s.db.NewIteratorWithPrefix(offeringPrefix)
	defer it.Release()

	var recs []*OfferingRecord
	for it.Next() {
		var rec OfferingRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, it.Error()
}

// PutController writes the singleton controller record.
func (s *Store) PutController(rec *ControllerRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Put(controllerKey, value)
}

// GetController reads the singleton controller record. The second return
// is false if no record has been written yet.
func (s *Store) GetController() (*ControllerRecord, bool, error) {
	has, err := s.db.Has(controllerKey)
	if err != nil || !has {
		return nil, false, err
	}
	value, err := s.db.Get(controllerKey)
	if err != nil {
		return nil, false, err
	}
	var rec ControllerRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func offeringKey(id uint32) []byte {
	key := make([]byte, len(offeringPrefix)+4)
	copy(key, offeringPrefix)
	binary.BigEndian.PutUint32(key[len(offeringPrefix):], id)
	return key
}
