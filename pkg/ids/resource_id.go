// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/luxfi/crypto/hashing"
)

// ResourceIDLen is the length of a ResourceID in bytes
const ResourceIDLen = 32

// ResourceID identifies an asset or credential resource type on the ledger.
// Two resources are the same type iff their ResourceIDs are equal.
type ResourceID [ResourceIDLen]byte

// EmptyResourceID is the zero ResourceID
var EmptyResourceID = ResourceID{}

// String returns the hex representation of the ResourceID
func (id ResourceID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the ResourceID
func (id ResourceID) Bytes() []byte {
	return id[:]
}

// IsEmpty returns true if the ResourceID is the zero value
func (id ResourceID) IsEmpty() bool {
	return id == ResourceID{}
}

// MarshalText encodes the ResourceID as hex for JSON keys and values
func (id ResourceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a hex-encoded ResourceID
func (id *ResourceID) UnmarshalText(text []byte) error {
	parsed, err := FromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// FromString parses a ResourceID from a hex string
func FromString(s string) (ResourceID, error) {
	var id ResourceID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != ResourceIDLen {
		return id, fmt.Errorf("invalid ResourceID length: expected %d, got %d", ResourceIDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// DeriveResourceID derives a ResourceID from a resource name and a nonce.
// The nonce keeps two resources minted under the same name distinct.
func DeriveResourceID(name string, nonce []byte) ResourceID {
	var id ResourceID
	copy(id[:], hashing.ComputeHash256(append([]byte(name), nonce...)))
	return id
}

// GenerateResourceID creates a random ResourceID
func GenerateResourceID() ResourceID {
	var id ResourceID
	rand.Read(id[:])
	return id
}
