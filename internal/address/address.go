// Package address normalizes and validates the 20-byte hex wallet
// addresses the wallet registry and position cache key on.
package address

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Normalize validates raw as an Ethereum-style hex address and returns its
// canonical checksummed form. Wallets are keyed by this form everywhere so
// that the same address discovered from different feeds (mixed case, no
// "0x" prefix) always collapses to one registry entry.
func Normalize(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("%q is not a valid hex address", raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

// Valid reports whether raw is a well-formed hex address.
func Valid(raw string) bool {
	return common.IsHexAddress(raw)
}
