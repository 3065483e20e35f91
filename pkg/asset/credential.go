// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package asset

import (
	"github.com/google/uuid"

	"github.com/radstarter/dutchd/pkg/ids"
)

// Credential is a capability token with a fixed supply of one. Holding the
// credential is the authorization; entry points verify the presented
// credential's type against a stored expected ResourceID.
type Credential struct {
	Resource Resource          `json:"resource"`
	Tags     map[string]string `json:"tags"`
}

// MintCredential mints a fresh single-supply capability token. The tags
// carry descriptive metadata, e.g. the offering id a clearing credential
// settles for.
func MintCredential(name string, tags map[string]string) *Credential {
	nonce := uuid.New()
	if tags == nil {
		tags = map[string]string{}
	}
	return &Credential{
		Resource: Resource{
			ID:   ids.DeriveResourceID(name, nonce[:]),
			Name: name,
		},
		Tags: tags,
	}
}

// Tag returns the value of a metadata tag, if present.
func (c *Credential) Tag(key string) (string, bool) {
	v, ok := c.Tags[key]
	return v, ok
}

// TypeID returns the credential's resource type identifier.
func (c *Credential) TypeID() ids.ResourceID {
	return c.Resource.ID
}
