package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = core.AccountKey{
	Address:   "F8D6E0586B0A20C7",
	Index:     1,
	PublicKey: "0x04aa",
	SigAlgo:   core.SigAlgoECDSAP256,
	HashAlgo:  core.HashAlgoSHA3_256,
	Weight:    core.FullWeight,
}

func TestMemoryKeyRegistry(t *testing.T) {
	ctx := context.Background()
	r, err := NewMemoryKeyRegistry(testKey)
	require.NoError(t, err)

	key, err := r.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, testAddress, key.Address)
	assert.Equal(t, testKey.PublicKey, key.PublicKey)
	assert.False(t, key.Revoked)

	_, err = r.ResolveKey(ctx, testAddress, 0)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
	_, err = r.ResolveKey(ctx, "0x01", 1)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, r.RevokeKey(testAddress, 1))
	key, err = r.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.True(t, key.Revoked)

	assert.ErrorIs(t, r.RevokeKey(testAddress, 9), core.ErrKeyNotFound)

	_, err = NewMemoryKeyRegistry(core.AccountKey{Address: "nope"})
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}

func TestMemoryKeyRegistryResolvedKeyIsCopy(t *testing.T) {
	r, err := NewMemoryKeyRegistry(testKey)
	require.NoError(t, err)

	key, err := r.ResolveKey(context.Background(), testAddress, 1)
	require.NoError(t, err)
	key.Revoked = true

	again, err := r.ResolveKey(context.Background(), testAddress, 1)
	require.NoError(t, err)
	assert.False(t, again.Revoked)
}

func TestRedisKeyRegistry(t *testing.T) {
	_, client := newRedis(t)
	r := NewRedisKeyRegistry(client)
	ctx := context.Background()

	var _ ports.KeyResolver = r

	require.NoError(t, r.AddKey(ctx, testKey))

	key, err := r.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, testAddress, key.Address)
	assert.Equal(t, core.SigAlgoECDSAP256, key.SigAlgo)
	assert.Equal(t, core.HashAlgoSHA3_256, key.HashAlgo)
	assert.Equal(t, core.FullWeight, key.Weight)

	_, err = r.ResolveKey(ctx, testAddress, 2)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
}

func TestLoadKeys(t *testing.T) {
	keys, err := LoadKeys(strings.NewReader(`[
		{"address":"0xf8d6e0586b0a20c7","index":0,"publicKey":"0x01","sigAlgo":"Ed25519","hashAlgo":"SHA2_256","weight":1000},
		{"address":"0xf8d6e0586b0a20c7","index":1,"publicKey":"0x02","sigAlgo":"ECDSA_secp256k1","hashAlgo":"KECCAK_256","weight":500,"revoked":true}
	]`))
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, core.SigAlgoEd25519, keys[0].SigAlgo)
	assert.True(t, keys[1].Revoked)

	_, err = LoadKeys(strings.NewReader(`{`))
	assert.Error(t, err)
}

func TestLoadKeysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"address":"0x01","index":0,"publicKey":"0x01","sigAlgo":"Ed25519","hashAlgo":"SHA2_256","weight":1000}]`), 0o600))

	keys, err := LoadKeysFile(path)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = LoadKeysFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
