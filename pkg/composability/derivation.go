package composability

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/composability-codec/pkg/cache"
	"github.com/code-payments/composability-codec/pkg/solana"
	"github.com/code-payments/composability-codec/pkg/sync"
)

const (
	// DefaultSeedVersion is the leading seed of every bridge account derivation.
	DefaultSeedVersion byte = 0x03

	authoritySeed = "AUTH"
	payerSeed     = "PAYER"

	derivationWeight      = 1
	derivationLockStripes = 32
)

// DeriveResourceAddress derives the program address for (base, seed) under
// programID using the canonical bump search.
func DeriveResourceAddress(base, programID PublicKeyWord, seed Salt) (PublicKeyWord, error) {
	address, _, err := DeriveResourceAddressAndBump(base, programID, seed)
	return address, err
}

// DeriveResourceAddressAndBump is DeriveResourceAddress that also returns the
// bump seed that produced the address.
func DeriveResourceAddressAndBump(base, programID PublicKeyWord, seed Salt) (PublicKeyWord, uint8, error) {
	return findProgramAddress(programID, base[:], seed[:])
}

// DeriveCreateWithSeedAddress computes sha256(base || seed || programID) with no
// bump search.
func DeriveCreateWithSeedAddress(base PublicKeyWord, seed string, programID PublicKeyWord) (PublicKeyWord, error) {
	pub, err := solana.CreateWithSeed(base.PublicKey(), seed, programID.PublicKey())
	if err != nil {
		return PublicKeyWord{}, err
	}
	return WordFromPublicKey(pub)
}

// DeriveBridgeAccountAddress derives the Solana account that the bridge program
// controls on behalf of an EVM address.
func DeriveBridgeAccountAddress(bridgeProgram PublicKeyWord, evm common.Address) (PublicKeyWord, error) {
	return defaultDeriver.BridgeAccountAddress(bridgeProgram, evm)
}

// DeriveExtAuthority derives the external authority of a contract for a salt.
func DeriveExtAuthority(bridgeProgram PublicKeyWord, contract common.Address, salt Salt) (PublicKeyWord, error) {
	return defaultDeriver.ExtAuthority(bridgeProgram, contract, salt)
}

// DerivePayer derives the account that pays for resources created by a
// contract.
func DerivePayer(bridgeProgram PublicKeyWord, contract common.Address) (PublicKeyWord, error) {
	return defaultDeriver.Payer(bridgeProgram, contract)
}

// DerivationOptions configures a Deriver.
type DerivationOptions struct {
	// SeedVersion prefixes every bridge account seed list.
	SeedVersion byte

	// CacheBudget is the number of derivations memoized. Zero disables caching.
	CacheBudget int
}

// DefaultDerivationOptions returns the options used by the package level
// derivation functions.
func DefaultDerivationOptions() DerivationOptions {
	return DerivationOptions{
		SeedVersion: DefaultSeedVersion,
	}
}

// Deriver derives bridge accounts for a fixed seed version. Results are pure
// functions of their inputs and are memoized when a cache budget is set.
type Deriver struct {
	log         *logrus.Entry
	seedVersion byte
	cache       cache.Cache
	locks       *sync.StripedLock
}

var defaultDeriver = NewDeriver(DefaultDerivationOptions())

// NewDeriver returns a Deriver for opts.
func NewDeriver(opts DerivationOptions) *Deriver {
	d := &Deriver{
		log:         logrus.StandardLogger().WithField("type", "composability/deriver"),
		seedVersion: opts.SeedVersion,
	}
	if opts.CacheBudget > 0 {
		d.cache = cache.NewCache(opts.CacheBudget * derivationWeight)
		d.locks = sync.NewStripedLock(derivationLockStripes)
	}
	return d
}

// SeedVersion returns the configured seed version.
func (d *Deriver) SeedVersion() byte {
	return d.seedVersion
}

// ResourceAddress is DeriveResourceAddressAndBump with memoization.
func (d *Deriver) ResourceAddress(base, programID PublicKeyWord, seed Salt) (PublicKeyWord, uint8, error) {
	return d.derive(programID, base[:], seed[:])
}

// BridgeAccountAddress derives [version, evm] under the bridge program.
func (d *Deriver) BridgeAccountAddress(bridgeProgram PublicKeyWord, evm common.Address) (PublicKeyWord, error) {
	address, _, err := d.derive(bridgeProgram, []byte{d.seedVersion}, evm.Bytes())
	return address, err
}

// ExtAuthority derives [version, "AUTH", contract, salt] under the bridge
// program.
func (d *Deriver) ExtAuthority(bridgeProgram PublicKeyWord, contract common.Address, salt Salt) (PublicKeyWord, error) {
	address, _, err := d.derive(bridgeProgram, []byte{d.seedVersion}, []byte(authoritySeed), contract.Bytes(), salt[:])
	return address, err
}

// Payer derives [version, "PAYER", contract] under the bridge program.
func (d *Deriver) Payer(bridgeProgram PublicKeyWord, contract common.Address) (PublicKeyWord, error) {
	address, _, err := d.derive(bridgeProgram, []byte{d.seedVersion}, []byte(payerSeed), contract.Bytes())
	return address, err
}

type derivation struct {
	address PublicKeyWord
	bump    uint8
}

func (d *Deriver) derive(programID PublicKeyWord, seeds ...[]byte) (PublicKeyWord, uint8, error) {
	if d.cache == nil {
		return findProgramAddress(programID, seeds...)
	}

	key := derivationKey(programID, seeds)
	if result, ok := d.cached(key); ok {
		return result.address, result.bump, nil
	}

	// Concurrent callers for the same key wait for one bump search.
	mu := d.locks.Get([]byte(key))
	mu.Lock()
	defer mu.Unlock()

	if result, ok := d.cached(key); ok {
		return result.address, result.bump, nil
	}

	address, bump, err := findProgramAddress(programID, seeds...)
	if err != nil {
		return PublicKeyWord{}, 0, err
	}

	if err := d.cache.Insert(key, derivation{address: address, bump: bump}, derivationWeight); err != nil && err != cache.ErrKeyExists {
		d.log.WithError(err).Warn("failed to cache derivation")
	}
	return address, bump, nil
}

func (d *Deriver) cached(key string) (derivation, bool) {
	cached, ok := d.cache.Retrieve(key)
	if !ok {
		return derivation{}, false
	}
	return cached.(derivation), true
}

func derivationKey(programID PublicKeyWord, seeds [][]byte) string {
	key := programID.String()
	for _, seed := range seeds {
		key += fmt.Sprintf(":%x", seed)
	}
	return key
}

func findProgramAddress(programID PublicKeyWord, seeds ...[]byte) (PublicKeyWord, uint8, error) {
	pub, bump, err := solana.FindProgramAddressAndBump(programID.PublicKey(), seeds...)
	if err != nil {
		return PublicKeyWord{}, 0, err
	}

	address, err := WordFromPublicKey(pub)
	if err != nil {
		return PublicKeyWord{}, 0, err
	}
	return address, bump, nil
}
