package keys

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
)

// Format describes how a private key was written on the page.
type Format string

const (
	WIF Format = "wif"
	Hex Format = "hex"
)

var (
	// addressPattern is the loose shape check applied before a full decode.
	addressPattern = regexp.MustCompile(`^(bc1|[13])[a-zA-HJ-NP-Z0-9]{25,90}$`)

	params = &chaincfg.MainNetParams

	ErrInvalidKey     = errors.New("invalid private key")
	ErrInvalidAddress = errors.New("invalid bitcoin address")
)

// MatchesPattern reports whether s has the shape of a mainnet bitcoin address.
func MatchesPattern(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidAddress reports whether s is a well formed mainnet address
// (base58check P2PKH/P2SH or bech32 segwit) with a valid checksum.
func ValidAddress(s string) bool {
	if !MatchesPattern(s) {
		return false
	}
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return false
	}
	return addr.IsForNet(params)
}

// PrivateKey wraps a secp256k1 private key parsed from a listing.
type PrivateKey struct {
	key        *btcec.PrivateKey
	format     Format
	compressed bool // only meaningful for WIF keys
}

// ParsePrivateKey accepts a WIF string (compressed or uncompressed) or a
// 64 character hex scalar, optionally 0x prefixed.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if wif, err := btcutil.DecodeWIF(s); err == nil {
		if !wif.IsForNet(params) {
			return nil, fmt.Errorf("%w: wif is not for mainnet", ErrInvalidKey)
		}
		return &PrivateKey{key: wif.PrivKey, format: WIF, compressed: wif.CompressPubKey}, nil
	}

	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(h) != 64 {
		return nil, fmt.Errorf("%w: expected wif or 64 hex characters", ErrInvalidKey)
	}
	// HexToECDSA rejects zero and scalars >= N, PrivKeyFromBytes silently reduces them.
	ecdsaKey, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv, _ := btcec.PrivKeyFromBytes(crypto.FromECDSA(ecdsaKey))
	return &PrivateKey{key: priv, format: Hex}, nil
}

// Format returns the encoding the key was parsed from.
func (k *PrivateKey) Format() Format {
	return k.format
}

// Compressed reports the WIF compression flag.
func (k *PrivateKey) Compressed() bool {
	return k.compressed
}

// Addresses returns every standard single-key address the key controls:
// P2PKH (compressed and uncompressed), P2SH-P2WPKH and P2WPKH.
func (k *PrivateKey) Addresses() ([]string, error) {
	pub := k.key.PubKey()

	hashCompressed := btcutil.Hash160(pub.SerializeCompressed())
	hashUncompressed := btcutil.Hash160(pub.SerializeUncompressed())

	p2pkhC, err := btcutil.NewAddressPubKeyHash(hashCompressed, params)
	if err != nil {
		return nil, err
	}
	p2pkhU, err := btcutil.NewAddressPubKeyHash(hashUncompressed, params)
	if err != nil {
		return nil, err
	}
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(hashCompressed, params)
	if err != nil {
		return nil, err
	}
	// OP_0 <20 byte hash>
	witnessProgram := append([]byte{0x00, 0x14}, hashCompressed...)
	p2sh, err := btcutil.NewAddressScriptHash(witnessProgram, params)
	if err != nil {
		return nil, err
	}

	return []string{
		p2pkhC.EncodeAddress(),
		p2pkhU.EncodeAddress(),
		p2sh.EncodeAddress(),
		p2wpkh.EncodeAddress(),
	}, nil
}

// Matches reports whether key derives address. Malformed input returns an error.
func Matches(address, key string) (bool, error) {
	if !ValidAddress(address) {
		return false, fmt.Errorf("%w: '%s'", ErrInvalidAddress, address)
	}
	priv, err := ParsePrivateKey(key)
	if err != nil {
		return false, err
	}
	derived, err := priv.Addresses()
	if err != nil {
		return false, err
	}
	for _, a := range derived {
		if a == address {
			return true, nil
		}
	}
	return false, nil
}
