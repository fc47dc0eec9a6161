package userwallet

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/securefile"
)

// Well-known hardhat account #0.
const (
	hardhatKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestFromPrivateKeyHex(t *testing.T) {
	w, err := FromPrivateKeyHex(hardhatKey)
	require.NoError(t, err)
	assert.Equal(t, hardhatAddr, w.Address().Hex())

	_, err = FromPrivateKeyHex("")
	require.Error(t, err)
	_, err = FromPrivateKeyHex("0x1234")
	require.Error(t, err)
}

func TestSignHashRecoversAddress(t *testing.T) {
	w, err := FromPrivateKeyHex(hardhatKey)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("swap"))
	sig, err := w.SignHash(context.Background(), digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), crypto.PubkeyToAddress(*pub))

	_, err = w.SignHash(context.Background(), []byte("short"))
	require.Error(t, err)
}

func TestStoreEnsureCreatesThenLoads(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "keystore.json"))
	require.NoError(t, err)
	s.Opt.KDF = securefile.KDF{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32}

	created, err := s.Ensure([]byte("hunter22hunter"))
	require.NoError(t, err)

	loaded, err := s.Ensure([]byte("hunter22hunter"))
	require.NoError(t, err)
	assert.Equal(t, created.Address(), loaded.Address())

	_, err = s.Ensure([]byte("wrong-password"))
	require.ErrorIs(t, err, securefile.ErrInvalidPasswordOrCorrupt)
}
