package userwallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/wtypes"
	"github.com/quantumauth-io/quantum-swap-agent/internal/securefile"
)

// Wallet is a hot key held in memory. It is also the keystore payload.
type Wallet struct {
	Version    int    `json:"version"`
	AddressHex string `json:"address"`
	PrivKeyHex string `json:"priv_key_hex"`
	CreatedAt  string `json:"created_at,omitempty"` // RFC3339
}

var _ wtypes.Wallet = (*Wallet)(nil)

func (w *Wallet) Address() common.Address {
	return common.HexToAddress(w.AddressHex)
}

func (w *Wallet) privateKey() (*ecdsa.PrivateKey, error) {
	k, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(w.PrivKeyHex, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("to ecdsa: %w", err)
	}
	return k, nil
}

func (w *Wallet) SignHash(ctx context.Context, digest32 []byte) ([]byte, error) {
	_ = ctx

	if err := wtypes.EnsureDigest32(digest32); err != nil {
		return nil, err
	}
	key, err := w.privateKey()
	if err != nil {
		return nil, err
	}
	return crypto.Sign(digest32, key) // V=0/1
}

// FromPrivateKeyHex builds a wallet from a raw hex key (with or without 0x).
func FromPrivateKeyHex(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, errors.New("empty private key")
	}
	w := &Wallet{Version: 1, PrivKeyHex: hexKey}
	key, err := w.privateKey()
	if err != nil {
		return nil, err
	}
	w.PrivKeyHex = fmt.Sprintf("%x", crypto.FromECDSA(key))
	w.AddressHex = crypto.PubkeyToAddress(key.PublicKey).Hex()
	return w, nil
}

func NewRandomWallet() (*Wallet, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Wallet{
		Version:    1,
		AddressHex: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivKeyHex: fmt.Sprintf("%x", crypto.FromECDSA(key)),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Store is the encrypted keystore file.
type Store struct {
	Path string
	Opt  securefile.Options
}

// NewStore uses path when set, otherwise the first config path candidate.
func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		paths, err := securefile.ConfigPathCandidates(constants.AppName, constants.KeystoreFile)
		if err != nil {
			return nil, err
		}
		path = paths[0]
	}
	return &Store{
		Path: path,
		Opt: securefile.Options{
			// keep identical for read + write
			AAD:           []byte(constants.AADConstant),
			FilePerm:      constants.FilePerm,
			DirectoryPerm: constants.DirectoryPerm,
		},
	}, nil
}

// Ensure loads the keystore, or creates a fresh key when none exists yet.
func (s *Store) Ensure(password []byte) (*Wallet, error) {
	w, err := securefile.ReadEncryptedJSON[Wallet](s.Path, password, s.Opt)
	if err == nil {
		return &w, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		nw, err := NewRandomWallet()
		if err != nil {
			return nil, err
		}
		if err := securefile.WriteEncryptedJSON(s.Path, *nw, password, s.Opt); err != nil {
			return nil, err
		}
		log.Info("created new signing key", "address", nw.AddressHex, "keystore", s.Path)
		return nw, nil
	}

	return nil, fmt.Errorf("load keystore %s: %w", s.Path, err)
}
