package composability

import (
	"fmt"
	"sort"

	"github.com/code-payments/composability-codec/pkg/solana"
)

// AccountMeta describes the role of one account in an instruction.
type AccountMeta struct {
	Account    PublicKeyWord
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta creates a new AccountMeta representing a writable account.
func NewAccountMeta(account PublicKeyWord, isSigner bool) AccountMeta {
	return AccountMeta{
		Account:    account,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(account PublicKeyWord, isSigner bool) AccountMeta {
	return AccountMeta{
		Account:    account,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

func (m AccountMeta) String() string {
	return fmt.Sprintf("%s(signer=%t,writable=%t)", m.Account, m.IsSigner, m.IsWritable)
}

// ApplyOverrides returns a copy of accounts with the entries at the override
// indices replaced. The input slice is never modified.
func ApplyOverrides(accounts []AccountMeta, overrides map[int]AccountMeta) ([]AccountMeta, error) {
	indices := make([]int, 0, len(overrides))
	for index := range overrides {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	for _, index := range indices {
		if index < 0 || index >= len(accounts) {
			return nil, malformed("accounts", index, fmt.Sprintf("override index out of range for %d accounts", len(accounts)))
		}
	}

	if accounts == nil {
		return nil, nil
	}

	updated := make([]AccountMeta, len(accounts))
	copy(updated, accounts)
	for _, index := range indices {
		updated[index] = overrides[index]
	}
	return updated, nil
}

// EncodeAccounts encodes accounts with the default codec.
func EncodeAccounts(accounts []AccountMeta) []byte {
	return defaultCodec.EncodeAccounts(accounts)
}

// EncodeAccountsWithOverrides applies overrides and encodes the result with the
// default codec.
func EncodeAccountsWithOverrides(accounts []AccountMeta, overrides map[int]AccountMeta) ([]byte, error) {
	return defaultCodec.EncodeAccountsWithOverrides(accounts, overrides)
}

// DecodeAccounts decodes an account list with the default codec.
func DecodeAccounts(b []byte) ([]AccountMeta, int, error) {
	return defaultCodec.DecodeAccounts(b)
}

// EncodeAccounts emits the account count followed by one record per account,
// in order.
func (c *Codec) EncodeAccounts(accounts []AccountMeta) []byte {
	b := make([]byte, accountsSize(len(accounts)))

	var offset int
	c.putAccounts(b, accounts, &offset)
	return b
}

// EncodeAccountsWithOverrides applies overrides and encodes the result.
func (c *Codec) EncodeAccountsWithOverrides(accounts []AccountMeta, overrides map[int]AccountMeta) ([]byte, error) {
	updated, err := ApplyOverrides(accounts, overrides)
	if err != nil {
		return nil, err
	}
	return c.EncodeAccounts(updated), nil
}

// DecodeAccounts reads an account count and exactly that many records from the
// start of b. It returns the accounts and the number of bytes consumed. Bytes
// after the last record are left for the caller.
func (c *Codec) DecodeAccounts(b []byte) ([]AccountMeta, int, error) {
	var offset int
	accounts, err := c.getAccounts(b, &offset)
	if err != nil {
		return nil, 0, err
	}
	return accounts, offset, nil
}

func accountsSize(n int) int {
	return lengthPrefixSize + n*accountRecordSize
}

func (c *Codec) putAccounts(dst []byte, accounts []AccountMeta, offset *int) {
	c.putUint64(dst, uint64(len(accounts)), offset)
	for _, account := range accounts {
		c.putWord(dst, account.Account, offset)
		c.putFlag(dst, account.IsSigner, offset)
		c.putFlag(dst, account.IsWritable, offset)
	}
}

func (c *Codec) getAccounts(src []byte, offset *int) ([]AccountMeta, error) {
	if remaining := len(src) - *offset; remaining < lengthPrefixSize {
		return nil, truncated("account_count", -1, lengthPrefixSize, remaining)
	}

	var count uint64
	c.getUint64(src, &count, offset)
	if count == 0 {
		return nil, nil
	}

	// The count is untrusted, so capacity is bounded by what the buffer can
	// actually hold.
	capacity := uint64((len(src) - *offset) / accountRecordSize)
	if count < capacity {
		capacity = count
	}
	accounts := make([]AccountMeta, 0, capacity)

	for i := uint64(0); i < count; i++ {
		index := int(i)
		if remaining := len(src) - *offset; remaining < accountRecordSize {
			return nil, truncated("account", index, accountRecordSize, remaining)
		}

		var account AccountMeta
		var word [WordSize]byte
		c.getWord(src, &word, offset)
		account.Account = word

		if !c.getFlag(src, &account.IsSigner, offset) {
			return nil, malformed("is_signer", index, fmt.Sprintf("invalid flag byte 0x%02x", src[*offset]))
		}
		if !c.getFlag(src, &account.IsWritable, offset) {
			return nil, malformed("is_writable", index, fmt.Sprintf("invalid flag byte 0x%02x", src[*offset]))
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}

// FromSolanaAccountMeta converts an in-repo Solana account meta.
func FromSolanaAccountMeta(meta solana.AccountMeta) (AccountMeta, error) {
	word, err := WordFromPublicKey(meta.PublicKey)
	if err != nil {
		return AccountMeta{}, err
	}

	return AccountMeta{
		Account:    word,
		IsSigner:   meta.IsSigner,
		IsWritable: meta.IsWritable,
	}, nil
}
