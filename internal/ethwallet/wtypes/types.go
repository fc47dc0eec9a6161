package wtypes

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Wallet is an EOA signer. SignHash signs a 32-byte digest and returns a
// 65-byte signature (R || S || V) with V as 0/1, as go-ethereum's crypto.Sign does.
type Wallet interface {
	Address() common.Address
	SignHash(ctx context.Context, digest32 []byte) ([]byte, error)
}

func EnsureDigest32(d []byte) error {
	if len(d) != 32 {
		return fmt.Errorf("digest must be 32 bytes, got %d", len(d))
	}
	return nil
}
