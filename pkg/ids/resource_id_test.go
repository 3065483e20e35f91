// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceIDString(t *testing.T) {
	require := require.New(t)

	id := GenerateResourceID()
	require.Len(id.String(), 2*ResourceIDLen)

	parsed, err := FromString(id.String())
	require.NoError(err)
	require.Equal(id, parsed)

	_, err = FromString("abcd")
	require.Error(err)
	_, err = FromString("not hex at all")
	require.Error(err)
}

func TestDeriveResourceID(t *testing.T) {
	require := require.New(t)

	a := DeriveResourceID("RadCoin", []byte{1, 2, 3})
	b := DeriveResourceID("RadCoin", []byte{1, 2, 3})
	require.Equal(a, b)

	require.NotEqual(a, DeriveResourceID("RadCoin", []byte{4, 5, 6}))
	require.NotEqual(a, DeriveResourceID("OtherCoin", []byte{1, 2, 3}))
	require.False(a.IsEmpty())
	require.True(EmptyResourceID.IsEmpty())
}

func TestResourceIDJSON(t *testing.T) {
	require := require.New(t)

	id := DeriveResourceID("RadCoin", []byte{7})
	raw, err := json.Marshal(id)
	require.NoError(err)

	var back ResourceID
	require.NoError(json.Unmarshal(raw, &back))
	require.Equal(id, back)
}
