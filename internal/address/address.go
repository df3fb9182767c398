// Package address checks deposit addresses against the format of their chain.
package address

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalid is returned for addresses that do not match their chain format.
var ErrInvalid = errors.New("invalid address")

// Family groups networks sharing one address format.
type Family int

const (
	FamilyOther Family = iota
	FamilyBitcoin
	FamilyEVM
	FamilyTron
)

func (f Family) String() string {
	return [...]string{"other", "bitcoin", "evm", "tron"}[f]
}

// tronVersion is the base58check version byte of TRON mainnet addresses ("T...").
const tronVersion = 0x41

var families = map[string]Family{
	"btc":      FamilyBitcoin,
	"bitcoin":  FamilyBitcoin,
	"eth":      FamilyEVM,
	"ethereum": FamilyEVM,
	"erc20":    FamilyEVM,
	"bsc":      FamilyEVM,
	"bep20":    FamilyEVM,
	"bnb":      FamilyEVM,
	"polygon":  FamilyEVM,
	"matic":    FamilyEVM,
	"arbitrum": FamilyEVM,
	"optimism": FamilyEVM,
	"base":     FamilyEVM,
	"tron":     FamilyTron,
	"trx":      FamilyTron,
	"trc20":    FamilyTron,
}

// FamilyOf classifies a provider network name. Unrecognized networks are FamilyOther.
func FamilyOf(network string) Family {
	key := strings.ToLower(strings.TrimSpace(network))
	if f, ok := families[key]; ok {
		return f
	}
	switch {
	case strings.Contains(key, "erc20"), strings.Contains(key, "bep20"):
		return FamilyEVM
	case strings.Contains(key, "trc20"):
		return FamilyTron
	}
	return FamilyOther
}

// Validator validates addresses per network family. It is safe for concurrent use.
type Validator struct {
	bitcoin *chaincfg.Params
}

// New creates a Validator for mainnet addresses.
func New() *Validator {
	return &Validator{bitcoin: &chaincfg.MainNetParams}
}

// Validate returns an error wrapping ErrInvalid when address is not acceptable on network.
// Networks without a known format only require a non-empty address without whitespace.
func (v *Validator) Validate(network, address string) error {
	if address == "" || strings.IndexFunc(address, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalid, address)
	}

	switch FamilyOf(network) {
	case FamilyBitcoin:
		if !v.isBitcoin(address) {
			return fmt.Errorf("%w: %q is not a bitcoin address", ErrInvalid, address)
		}
	case FamilyEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: %q is not a hex address", ErrInvalid, address)
		}
	case FamilyTron:
		payload, version, err := base58.CheckDecode(address)
		if err != nil || version != tronVersion || len(payload) != common.AddressLength {
			return fmt.Errorf("%w: %q is not a tron address", ErrInvalid, address)
		}
	}
	return nil
}

// isBitcoin accepts base58 P2PKH/P2SH and segwit addresses of every witness
// version: bech32 for v0, bech32m for v1+ (taproot).
func (v *Validator) isBitcoin(address string) bool {
	decoded, err := btcutil.DecodeAddress(address, v.bitcoin)
	if err != nil {
		return false
	}
	if _, ok := decoded.(*btcutil.AddressPubKey); ok {
		return false
	}
	return decoded.IsForNet(v.bitcoin)
}
